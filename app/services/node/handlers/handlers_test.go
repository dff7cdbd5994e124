package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/minichain/app/services/node/handlers"
	"github.com/ardanlabs/minichain/business/web/errs"
	"github.com/ardanlabs/minichain/foundation/blockchain/consensus/pos"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/merkle"
	"github.com/ardanlabs/minichain/foundation/blockchain/worker"
	"github.com/ardanlabs/minichain/foundation/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type node struct {
	mux   http.Handler
	debug http.Handler
	chain *database.Chain
}

func newNode(t *testing.T, g genesis.Genesis) node {
	t.Helper()

	log := zap.NewNop().Sugar()
	evts := events.New[string]()

	chain, err := genesis.NewChain(context.Background(), g, nil)
	require.NoError(t, err)

	w := worker.Run(chain, 10, nil)
	t.Cleanup(w.Shutdown)

	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		Chain:    chain,
		Worker:   w,
		Evts:     evts,
	}
	if p, ok := chain.Sealer().(*pos.POS); ok {
		cfg.Registry = p.Registry()
	}

	return node{
		mux:   handlers.PublicMux(cfg),
		debug: handlers.DebugMux("test", log, chain),
		chain: chain,
	}
}

func posGenesis(t *testing.T) genesis.Genesis {
	t.Helper()

	var g genesis.Genesis
	err := json.Unmarshal([]byte(`{
		"consensus": "pos",
		"validators": [
			{"name": "Alice", "stake": "5"},
			{"name": "Bob", "stake": "10"},
			{"name": "Charlie", "stake": "1"}
		]
	}`), &g)
	require.NoError(t, err)

	return g
}

func do(t *testing.T, h http.Handler, method string, path string, body string, resp any) int {
	t.Helper()

	var r *http.Request
	switch body {
	case "":
		r = httptest.NewRequest(method, path, nil)
	default:
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if resp != nil && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp), w.Body.String())
	}

	return w.Code
}

func TestBlocks(t *testing.T) {
	n := newNode(t, posGenesis(t))

	var created struct {
		Block database.BlockData `json:"block"`
	}
	code := do(t, n.mux, http.MethodPost, "/v1/blocks", `{"payload": {"to": "Bob", "from": "Alice", "amount": 10}}`, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, uint64(1), created.Block.Index)
	assert.Equal(t, `{"amount":10,"from":"Alice","to":"Bob"}`, string(created.Block.Payload))
	assert.NotEmpty(t, created.Block.ValidatorID)

	var er errs.Response
	code = do(t, n.mux, http.MethodPost, "/v1/blocks", `{}`, &er)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, er.Fields, "payload")

	var blocks []database.BlockData
	code = do(t, n.mux, http.MethodGet, "/v1/blocks", "", &blocks)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, blocks, 2)
	assert.Equal(t, blocks[0].Hash, blocks[1].PrevBlockHash)

	var blk database.BlockData
	assert.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/blocks/1", "", &blk))
	assert.Equal(t, created.Block.Hash, blk.Hash)

	assert.Equal(t, http.StatusNotFound, do(t, n.mux, http.MethodGet, "/v1/blocks/9", "", nil))
	assert.Equal(t, http.StatusBadRequest, do(t, n.mux, http.MethodGet, "/v1/blocks/first", "", nil))

	var st struct {
		Consensus  string `json:"consensus"`
		Blocks     int    `json:"blocks"`
		LatestHash string `json:"latest_hash"`
	}
	assert.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/status", "", &st))
	assert.Equal(t, pos.Kind, st.Consensus)
	assert.Equal(t, 2, st.Blocks)
	assert.Equal(t, created.Block.Hash, st.LatestHash)
}

func TestQueue(t *testing.T) {
	n := newNode(t, posGenesis(t))

	var q struct {
		Ticket worker.Ticket `json:"ticket"`
	}
	code := do(t, n.mux, http.MethodPost, "/v1/blocks/queue", `{"payload": "queued payload"}`, &q)
	require.Equal(t, http.StatusAccepted, code)
	require.NotEmpty(t, q.Ticket.ID)

	require.Eventually(t, func() bool {
		var got struct {
			Ticket worker.Ticket `json:"ticket"`
		}
		code := do(t, n.mux, http.MethodGet, "/v1/tickets/"+q.Ticket.ID, "", &got)
		return code == http.StatusOK && got.Ticket.Status == worker.StatusSealed
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, n.chain.Len())
	assert.Equal(t, http.StatusNotFound, do(t, n.mux, http.MethodGet, "/v1/tickets/unknown", "", nil))
}

func TestValidateAndVerify(t *testing.T) {
	n := newNode(t, posGenesis(t))

	for _, p := range []string{`"one"`, `"two"`} {
		require.Equal(t, http.StatusCreated, do(t, n.mux, http.MethodPost, "/v1/blocks", `{"payload": `+p+`}`, nil))
	}

	var v struct {
		Valid  bool   `json:"valid"`
		Blocks int    `json:"blocks"`
		Error  string `json:"error"`
	}
	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/validate", "", &v))
	assert.True(t, v.Valid)
	assert.Equal(t, 3, v.Blocks)

	var blocks []database.BlockData
	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/blocks", "", &blocks))

	body, err := json.Marshal(blocks)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodPost, "/v1/verify", string(body), &v))
	assert.True(t, v.Valid)

	blocks[1].Payload = json.RawMessage(`"Hacked!"`)
	body, err = json.Marshal(blocks)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodPost, "/v1/verify", string(body), &v))
	assert.False(t, v.Valid)
	assert.Contains(t, v.Error, "blk[1]")

	require.NoError(t, n.chain.Tamper(1, func(b *database.Block) {
		b.Header.Payload = json.RawMessage(`"Hacked!"`)
	}))

	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/validate", "", &v))
	assert.False(t, v.Valid)

	assert.Equal(t, http.StatusInternalServerError, do(t, n.debug, http.MethodGet, "/debug/readiness", "", nil))
	assert.Equal(t, http.StatusOK, do(t, n.debug, http.MethodGet, "/debug/liveness", "", nil))
}

func TestValidators(t *testing.T) {
	n := newNode(t, posGenesis(t))

	var vs struct {
		TotalStake string `json:"total_stake"`
		Validators []struct {
			Name string `json:"name"`
		} `json:"validators"`
	}
	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/validators", "", &vs))
	assert.Equal(t, "16", vs.TotalStake)
	assert.Len(t, vs.Validators, 3)

	var s struct {
		Draws  int `json:"draws"`
		Shares []struct {
			Name     string  `json:"name"`
			Wins     int     `json:"wins"`
			Observed float64 `json:"observed"`
			Expected float64 `json:"expected"`
		} `json:"shares"`
	}
	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/validators/sample?n=10000", "", &s))
	assert.Equal(t, 10_000, s.Draws)
	require.Len(t, s.Shares, 3)
	for _, sh := range s.Shares {
		assert.InDelta(t, sh.Expected, sh.Observed, 0.03, sh.Name)
	}

	var er errs.Response
	assert.Equal(t, http.StatusBadRequest, do(t, n.mux, http.MethodGet, "/v1/validators/sample?n=0", "", &er))
	assert.Contains(t, er.Fields, "n")
	assert.Equal(t, http.StatusBadRequest, do(t, n.mux, http.MethodGet, "/v1/validators/sample?n=lots", "", nil))
}

func TestValidatorsOnPOW(t *testing.T) {
	n := newNode(t, genesis.Genesis{Consensus: "pow", Difficulty: 1})

	assert.Equal(t, http.StatusNotFound, do(t, n.mux, http.MethodGet, "/v1/validators", "", nil))
	assert.Equal(t, http.StatusNotFound, do(t, n.mux, http.MethodGet, "/v1/validators/sample", "", nil))
}

func TestMerkle(t *testing.T) {
	n := newNode(t, posGenesis(t))

	for _, p := range []string{`"one"`, `"two"`, `"three"`} {
		require.Equal(t, http.StatusCreated, do(t, n.mux, http.MethodPost, "/v1/blocks", `{"payload": `+p+`}`, nil))
	}

	var root struct {
		Root   string     `json:"root"`
		Levels [][]string `json:"levels"`
	}
	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/merkle", "", &root))
	assert.Len(t, root.Levels[0], 4)

	var proof struct {
		Leaf  string             `json:"leaf"`
		Root  string             `json:"root"`
		Proof []merkle.ProofStep `json:"proof"`
	}
	require.Equal(t, http.StatusOK, do(t, n.mux, http.MethodGet, "/v1/merkle/2", "", &proof))
	assert.Equal(t, root.Root, proof.Root)
	assert.True(t, merkle.VerifyProof(digest.Default, proof.Leaf, proof.Proof, proof.Root))

	assert.Equal(t, http.StatusNotFound, do(t, n.mux, http.MethodGet, "/v1/merkle/20", "", nil))
}
