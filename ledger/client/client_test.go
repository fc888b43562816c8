package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/ledger/client"
	"github.com/fraudledger/migrate/log"
)

var (
	testAccount = ledger.AccountID{Name: "alice", Domain: ledger.DomainID{Name: "wonderland"}}
	testNow     = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func testSigner(t *testing.T) ledger.Signer {
	keys, err := ledger.KeyPairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	return ledger.Signer{Account: testAccount, Keys: keys}
}

// fakeNode is a minimal node: it answers trigger queries and reports each
// submitted transaction as pending for a number of polls before committing.
type fakeNode struct {
	mu          sync.Mutex
	triggers    []ledger.TriggerID
	pendingFor  int
	rejectWith  string
	polls       map[ledger.Hash]int
	submitted   []*ledger.SignedTransaction
	requestIDs  []string
	failQueries bool
}

func newFakeNode() *fakeNode {
	return &fakeNode{polls: map[ledger.Hash]int{}}
}

func (n *fakeNode) router(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			n.mu.Lock()
			n.requestIDs = append(n.requestIDs, req.Header.Get(client.RequestIDHeader))
			n.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/query", func(w http.ResponseWriter, req *http.Request) {
		if n.failQueries {
			http.Error(w, "node is syncing", http.StatusServiceUnavailable)
			return
		}
		var q ledger.SignedQuery
		require.NoError(t, json.NewDecoder(req.Body).Decode(&q))
		if err := q.Verify(); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		switch query := q.Payload.Query.Query.(type) {
		case ledger.FindAllActiveTriggerIDs:
			_ = json.NewEncoder(w).Encode(n.triggers)
		case ledger.FindTriggerByID:
			_ = json.NewEncoder(w).Encode(ledger.Trigger{
				ID: query.ID,
				Action: ledger.Action{
					Executable: ledger.Executable{Wasm: []byte{0x00, 0x61, 0x73, 0x6d}},
					Repeats:    ledger.Indefinitely(),
					Filter:     ledger.AccountMetadataFilter(nil),
					Metadata:   ledger.Metadata{},
				},
			})
		default:
			http.Error(w, "unsupported query", http.StatusBadRequest)
		}
	})
	r.Post("/transaction", func(w http.ResponseWriter, req *http.Request) {
		var tx ledger.SignedTransaction
		require.NoError(t, json.NewDecoder(req.Body).Decode(&tx))
		if err := tx.Verify(); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		n.mu.Lock()
		n.submitted = append(n.submitted, &tx)
		n.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/transaction/{hash}", func(w http.ResponseWriter, req *http.Request) {
		hash, err := ledger.ParseHash(chi.URLParam(req, "hash"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n.mu.Lock()
		defer n.mu.Unlock()
		n.polls[hash]++
		resp := client.StatusResponse{Hash: hash, Status: client.StatusPending}
		if n.polls[hash] > n.pendingFor {
			resp.Status = client.StatusCommitted
			if n.rejectWith != "" {
				resp.Status = client.StatusRejected
				resp.Reason = n.rejectWith
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return r
}

func newTestClient(t *testing.T, node *fakeNode) *client.Client {
	server := httptest.NewServer(node.router(t))
	t.Cleanup(server.Close)
	c, err := client.New(server.URL, client.Options{
		PollInterval:    time.Millisecond,
		MaxPollInterval: 4 * time.Millisecond,
	}, log.NewDiscardLogger())
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	_, err := client.New("ftp://node:8080", client.Options{}, log.NewDiscardLogger())
	require.Error(t, err)
	_, err = client.New("://", client.Options{}, log.NewDiscardLogger())
	require.Error(t, err)
}

func TestQueries(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	node.triggers = []ledger.TriggerID{{Name: "fraudcheck_v1"}, {Name: "limits"}}
	c := newTestClient(t, node)
	signer := testSigner(t)

	ids, err := ledger.QueryActiveTriggerIDs(context.Background(), c, signer, testNow)
	require.NoError(err)
	require.Equal(node.triggers, ids)

	trigger, err := ledger.QueryTriggerByID(context.Background(), c, signer, ids[1], testNow)
	require.NoError(err)
	require.Equal(ids[1], trigger.ID)
	require.True(trigger.Action.Repeats.Equal(ledger.Indefinitely()))
	require.NotNil(trigger.Action.Filter.Data)

	node.mu.Lock()
	defer node.mu.Unlock()
	require.Len(node.requestIDs, 2)
	require.NotEmpty(node.requestIDs[0])
	require.NotEqual(node.requestIDs[0], node.requestIDs[1])
}

func TestQueryRemoteFailure(t *testing.T) {
	node := newFakeNode()
	node.failQueries = true
	c := newTestClient(t, node)

	_, err := ledger.QueryActiveTriggerIDs(context.Background(), c, testSigner(t), testNow)
	require.ErrorIs(t, err, ledger.ErrRemoteFailure)

	var remote *ledger.RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, http.StatusServiceUnavailable, remote.Status)
	require.Contains(t, remote.Message, "node is syncing")
}

func TestSubmitAwaitsCommit(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	node.pendingFor = 3
	c := newTestClient(t, node)
	signer := testSigner(t)

	tx, err := ledger.NewTransaction(signer.Account).
		Add(ledger.UnregisterTrigger{ID: ledger.TriggerID{Name: "limits"}}).
		BuildSigned(signer.Keys, testNow)
	require.NoError(err)

	hash, err := ledger.Submit(context.Background(), c, tx, time.Second)
	require.NoError(err)
	expected, err := tx.Hash()
	require.NoError(err)
	require.Equal(expected, hash)

	node.mu.Lock()
	defer node.mu.Unlock()
	require.Len(node.submitted, 1)
	require.Equal(4, node.polls[hash])
}

func TestSubmitRejected(t *testing.T) {
	node := newFakeNode()
	node.rejectWith = "trigger not found"
	c := newTestClient(t, node)
	signer := testSigner(t)

	tx, err := ledger.NewTransaction(signer.Account).
		Add(ledger.UnregisterTrigger{ID: ledger.TriggerID{Name: "limits"}}).
		BuildSigned(signer.Keys, testNow)
	require.NoError(t, err)

	_, err = ledger.Submit(context.Background(), c, tx, time.Second)
	require.ErrorIs(t, err, ledger.ErrRemoteFailure)
	require.Contains(t, err.Error(), "trigger not found")
}

func TestSubmitAcknowledgementTimeout(t *testing.T) {
	node := newFakeNode()
	node.pendingFor = 1 << 30
	c := newTestClient(t, node)
	signer := testSigner(t)

	tx, err := ledger.NewTransaction(signer.Account).
		Add(ledger.UnregisterTrigger{ID: ledger.TriggerID{Name: "limits"}}).
		BuildSigned(signer.Keys, testNow)
	require.NoError(t, err)

	_, err = ledger.Submit(context.Background(), c, tx, 50*time.Millisecond)
	require.ErrorIs(t, err, ledger.ErrSubmissionTimeout)
}

func TestSubmitCancelled(t *testing.T) {
	node := newFakeNode()
	node.pendingFor = 1 << 30
	c := newTestClient(t, node)
	signer := testSigner(t)

	tx, err := ledger.NewTransaction(signer.Account).
		Add(ledger.UnregisterTrigger{ID: ledger.TriggerID{Name: "limits"}}).
		BuildSigned(signer.Keys, testNow)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = ledger.Submit(ctx, c, tx, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, ledger.ErrSubmissionTimeout)
}

func TestUnreachableNode(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	c, err := client.New(endpoint, client.Options{RequestTimeout: time.Second}, log.NewDiscardLogger())
	require.NoError(t, err)
	_, err = ledger.QueryActiveTriggerIDs(context.Background(), c, testSigner(t), testNow)
	require.ErrorIs(t, err, ledger.ErrRemoteFailure)
}
