package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govledger/treasury/governance"
	"github.com/govledger/treasury/internal/config"
)

var (
	testAdmin  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testMember = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testDonor  = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Node.DataDir = t.TempDir()
	cfg.Genesis.Admin = testAdmin
	cfg.Genesis.Members = []common.Address{testMember}
	cfg.Genesis.Funds = []config.Allocation{{Account: testDonor, Amount: "5000"}}
	cfg.Genesis.Tokens = []config.Allocation{{Account: testMember, Amount: "1000000000000000000"}}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestOpenNodeRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	n, err := openNode(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, n.gc.HasRole(governance.RoleMember, testMember))

	pid, err := n.gc.CreateProposal(ctx, governance.Call{From: testAdmin}, "Fund park")
	require.NoError(t, err)
	require.NoError(t, n.gc.Vote(ctx, governance.Call{From: testMember}, pid))
	_, err = n.gc.DonateToProposal(ctx, governance.Call{From: testDonor, Value: uint256.NewInt(800)}, pid, uint256.NewInt(800))
	require.NoError(t, err)
	n.close()

	n, err = openNode(ctx, cfg)
	require.NoError(t, err)
	defer n.close()

	p, err := n.gc.GetProposal(pid)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.VoteCount)
	assert.Equal(t, uint64(800), n.gc.EscrowBalance().Uint64())
	assert.Equal(t, uint64(4200), n.vault.BalanceOf(testDonor).Uint64(), "genesis funds must not be minted twice")
	assert.Equal(t, uint64(800), n.vault.BalanceOf(n.gc.EscrowAddress()).Uint64())

	// The restored escrow can still pay out, and token balances were reapplied
	require.NoError(t, n.gc.ExecuteDonation(ctx, governance.Call{From: testAdmin}, 0))
	assert.Equal(t, uint64(800), n.vault.BalanceOf(testAdmin).Uint64())
	err = n.gc.Vote(ctx, governance.Call{From: testMember}, pid)
	assert.ErrorIs(t, err, governance.ErrAlreadyVoted)
}

// crash stops a node without the final checkpoint
func crash(t *testing.T, n *node) {
	n.gc.Notifier().Close()
	require.NoError(t, n.store.Close())
}

func TestOpenNodeAfterCrash(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	n, err := openNode(ctx, cfg)
	require.NoError(t, err)
	pid, err := n.gc.CreateProposal(ctx, governance.Call{From: testAdmin}, "Fund park")
	require.NoError(t, err)
	require.NoError(t, n.gc.Vote(ctx, governance.Call{From: testMember}, pid))
	_, err = n.gc.DonateToProposal(ctx, governance.Call{From: testDonor, Value: uint256.NewInt(800)}, pid, uint256.NewInt(800))
	require.NoError(t, err)
	crash(t, n)

	n, err = openNode(ctx, cfg)
	require.NoError(t, err)

	// Custody survives without a checkpoint
	escrow := n.gc.EscrowAddress()
	assert.Equal(t, uint64(800), n.gc.EscrowBalance().Uint64())
	assert.Equal(t, uint64(800), n.vault.BalanceOf(escrow).Uint64())
	assert.Equal(t, uint64(4200), n.vault.BalanceOf(testDonor).Uint64())

	// Sequence numbers continue after the restored log
	events := n.gc.Notifier().Since(0)
	require.Len(t, events, 3)
	assert.Equal(t, governance.EventDonationReceived, events[2].Kind)

	require.NoError(t, n.gc.ExecuteDonation(ctx, governance.Call{From: testAdmin}, 0))
	assert.Equal(t, uint64(800), n.vault.BalanceOf(testAdmin).Uint64())
	assert.True(t, n.vault.BalanceOf(escrow).IsZero())
	events = n.gc.Notifier().Since(3)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(3), events[0].Seq)
	assert.Equal(t, governance.EventDonationExecuted, events[0].Kind)

	// A second crash after the payout keeps the paid-out balances
	crash(t, n)
	n, err = openNode(ctx, cfg)
	require.NoError(t, err)
	defer n.close()

	d, err := n.gc.GetDonation(0)
	require.NoError(t, err)
	assert.True(t, d.Executed)
	assert.True(t, n.gc.EscrowBalance().IsZero())
	assert.Equal(t, uint64(800), n.vault.BalanceOf(testAdmin).Uint64())
	assert.Equal(t, uint64(4), n.gc.Notifier().Len())
}

func TestHandlerServesJSONRPC(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.CorsOrigins = []string{"https://example.org"}

	n, err := openNode(context.Background(), cfg)
	require.NoError(t, err)
	defer n.close()

	srv := httptest.NewServer(n.handler())
	defer srv.Close()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"treasury_hasRole","params":["member","` + testMember.Hex() + `"]}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://example.org")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://example.org", resp.Header.Get("Access-Control-Allow-Origin"))
	var out struct {
		Result bool `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Result)
}

func TestRateLimitHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.RateLimit, cfg.RPC.RateBurst = 0.001, 1

	n, err := openNode(context.Background(), cfg)
	require.NoError(t, err)
	defer n.close()

	h := n.handler()
	body := `{"jsonrpc":"2.0","id":1,"method":"treasury_proposalCount","params":[]}`
	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
