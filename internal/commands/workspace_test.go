package commands

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondesk-dev/recondesk/internal/config"
	"github.com/recondesk-dev/recondesk/internal/engine"
	"github.com/recondesk-dev/recondesk/internal/importer"
	"github.com/recondesk-dev/recondesk/internal/model"
)

const testLedgerCSV = `serial,date,description,amount,drcr,reference
GL-1,2025-03-10,Invoice 1042,1250.00,CR,INV-1042
GL-2,2025-03-11,Office rent,900.00,DR,RENT-03
GL-3,2025-03-12,Refund 1042,1250.00,DR,INV-1042R
GL-4,2025-03-12,Rent rebate,900.00,CR,RENT-03R
`

func initWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, runInit(dir, "Test Workspace", "main"))
	return dir
}

func TestWorkspaceLifecycle(t *testing.T) {
	dir := initWorkspace(t)

	// First invocation: import a ledger file.
	ws, err := openWorkspace(dir)
	require.NoError(t, err)

	actor, err := ws.Actor("analyst")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAnalyst, actor.Role)

	csvPath := filepath.Join(dir, "import", "march.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testLedgerCSV), 0o644))

	parser := importer.DefaultRegistry().Get("ledger")
	require.NotNil(t, parser)
	n, err := importFile(ws, parser, csvPath, actor)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	g, err := ws.Session.ProposeMatch([]string{"GL-1"}, []string{"GL-3"}, actor, "credit against refund")
	require.NoError(t, err)
	ws.Close()

	// Second invocation: the state survived the process boundary.
	ws2, err := openWorkspace(dir)
	require.NoError(t, err)
	defer ws2.Close()

	assert.Len(t, ws2.Session.Transactions(), 4)
	require.Len(t, ws2.Session.Matches(), 1)
	assert.NoError(t, ws2.Session.VerifyAuditChain())

	// Match groups resolve by reference as well as by uuid.
	byRef, err := ws2.ResolveMatch(g.Ref)
	require.NoError(t, err)
	assert.Equal(t, g.ID, byRef.ID)
	byID, err := ws2.ResolveMatch(g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Ref, byID.Ref)
	_, err = ws2.ResolveMatch("M-1999-01-999")
	assert.Error(t, err)
}

func TestWorkspaceActorValidation(t *testing.T) {
	dir := initWorkspace(t)
	ws, err := openWorkspace(dir)
	require.NoError(t, err)
	defer ws.Close()

	_, err = ws.Actor("")
	assert.Error(t, err)

	_, err = ws.Actor("stranger")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not on the roster")
}

func TestWorkspaceClosedPeriodsApply(t *testing.T) {
	dir := initWorkspace(t)

	ws, err := openWorkspace(dir)
	require.NoError(t, err)
	actor, err := ws.Actor("analyst")
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "import", "march.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testLedgerCSV), 0o644))
	parser := importer.DefaultRegistry().Get("ledger")
	_, err = importFile(ws, parser, csvPath, actor)
	require.NoError(t, err)

	// Close March in the config file; the already-open session must see it
	// on its very next mutation.
	ws.Config.ClosedPeriods = []config.ClosedPeriod{{Start: "2025-03-01", End: "2025-03-31"}}
	require.NoError(t, config.Save(filepath.Join(dir, config.FileName), ws.Config))

	_, err = ws.Session.ProposeMatch([]string{"GL-1"}, []string{"GL-3"}, actor, "")
	require.Error(t, err)
	var locked *engine.PeriodLockedError
	assert.True(t, errors.As(err, &locked))
	ws.Close()
}
