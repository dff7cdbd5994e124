// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/minichain/business/web/errs"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/merkle"
	"github.com/ardanlabs/minichain/foundation/blockchain/validator"
	"github.com/ardanlabs/minichain/foundation/blockchain/worker"
	"github.com/ardanlabs/minichain/foundation/events"
	"github.com/ardanlabs/minichain/foundation/validate"
	"github.com/ardanlabs/minichain/foundation/web"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of chain endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	Chain    *database.Chain
	Worker   *worker.Worker
	Registry *validator.Registry
	WS       websocket.Upgrader
	Evts     *events.Events[string]
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns a summary of the chain this node holds.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st := status{
		Consensus:  h.Chain.Kind(),
		Algorithm:  string(h.Chain.Hasher().Algorithm()),
		Blocks:     h.Chain.Len(),
		Pending:    h.Worker.Pending(),
		Subscribed: h.Evts.Len(),
	}

	if latest, exists := h.Chain.LatestBlock(); exists {
		st.LatestHash = latest.Hash
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Blocks returns every block in the chain.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.Chain.Blocks()

	data := make([]database.BlockData, len(blocks))
	for i, blk := range blocks {
		data[i] = database.NewBlockData(blk)
	}

	return web.Respond(ctx, w, data, http.StatusOK)
}

// BlockByIndex returns a single block.
func (h Handlers) BlockByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid index: %w", err), http.StatusBadRequest)
	}

	blk, err := h.Chain.Block(index)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("block %d: %w", index, err)
	}

	return web.Respond(ctx, w, database.NewBlockData(blk), http.StatusOK)
}

// AppendBlock seals the payload into the next block and waits for the seal
// to complete. The seal is abandoned if the client goes away.
func (h Handlers) AppendBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nb NewBlock
	if err := web.Decode(r, &nb); err != nil {
		return err
	}

	blk, err := h.Chain.Append(ctx, nb.Payload)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("append block", "traceid", v.TraceID, "index", blk.Header.Index, "hash", blk.Hash)

	return web.Respond(ctx, w, sealed{Block: database.NewBlockData(blk)}, http.StatusCreated)
}

// QueueBlock hands the payload to the worker and returns a ticket that can
// be used to follow the seal.
func (h Handlers) QueueBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nb NewBlock
	if err := web.Decode(r, &nb); err != nil {
		return err
	}

	ticket, err := h.Worker.SignalAppend(uuid.NewString(), nb.Payload)
	if err != nil {
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	}

	return web.Respond(ctx, w, queued{Ticket: ticket}, http.StatusAccepted)
}

// Ticket returns the state of a queued payload.
func (h Handlers) Ticket(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ticket, err := h.Worker.Ticket(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, queued{Ticket: ticket}, http.StatusOK)
}

// Validate re-derives every block in the chain and reports the outcome.
func (h Handlers) Validate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := validation{
		Valid:  true,
		Blocks: h.Chain.Len(),
	}

	if err := h.Chain.Verify(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Verify checks a chain submitted by the client against the rules of this
// chain without adding any of its blocks.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var data []database.BlockData
	if err := web.Decode(r, &data); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blocks := make([]database.Block, len(data))
	for i, bd := range data {
		blocks[i] = database.ToBlock(bd)
	}

	resp := validation{
		Valid:  true,
		Blocks: len(blocks),
	}

	if err := h.Chain.VerifyForeign(blocks); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Validators returns the stake weighted validators of a proof of stake chain.
func (h Handlers) Validators(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.Registry == nil {
		return errs.NewTrusted(fmt.Errorf("chain is sealed by %s and has no validators", h.Chain.Kind()), http.StatusNotFound)
	}

	resp := validators{
		TotalStake: h.Registry.TotalStake().String(),
		Validators: h.Registry.Validators(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Sample performs n selections without sealing and reports how often every
// validator won against the share its stake entitles it to.
func (h Handlers) Sample(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.Registry == nil {
		return errs.NewTrusted(fmt.Errorf("chain is sealed by %s and has no validators", h.Chain.Kind()), http.StatusNotFound)
	}

	q := sampleQuery{Draws: 10_000}
	if n := r.URL.Query().Get("n"); n != "" {
		draws, err := strconv.Atoi(n)
		if err != nil {
			return errs.NewTrusted(fmt.Errorf("invalid n: %w", err), http.StatusBadRequest)
		}
		q.Draws = draws
	}

	if err := validate.Check(q); err != nil {
		return err
	}

	shares, err := h.Registry.Sample(q.Draws)
	if err != nil {
		return err
	}

	resp := sample{
		Draws:  q.Draws,
		Shares: make([]share, len(shares)),
	}
	for i, s := range shares {
		resp.Shares[i] = share{
			Name:     s.Validator.Name,
			Stake:    s.Validator.Stake.String(),
			Wins:     s.Wins,
			Observed: s.Observed,
			Expected: s.Expected,
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MerkleRoot fingerprints every block hash in the chain with a single root.
func (h Handlers) MerkleRoot(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tree, err := h.blockTree()
	if err != nil {
		return err
	}

	resp := merkleRoot{
		Algorithm: string(h.Chain.Hasher().Algorithm()),
		Root:      tree.RootHex(),
		Levels:    tree.Levels(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MerkleProof returns the proof that a block hash is part of the merkle root
// of the chain.
func (h Handlers) MerkleProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid index: %w", err), http.StatusBadRequest)
	}

	blk, err := h.Chain.Block(index)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	tree, err := h.blockTree()
	if err != nil {
		return err
	}

	leaf := merkle.Text(blk.Hash)
	proof, err := tree.Proof(leaf)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	leafHash, err := leaf.Hash(h.Chain.Hasher())
	if err != nil {
		return err
	}

	resp := merkleProof{
		Index: index,
		Leaf:  leafHash,
		Root:  tree.RootHex(),
		Proof: proof,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// blockTree constructs a merkle tree over the block hashes in index order.
func (h Handlers) blockTree() (*merkle.Tree[merkle.Text], error) {
	blocks := h.Chain.Blocks()

	leaves := make([]merkle.Text, len(blocks))
	for i, blk := range blocks {
		leaves[i] = merkle.Text(blk.Hash)
	}

	return merkle.NewTree(leaves, merkle.WithHasher[merkle.Text](h.Chain.Hasher()))
}
