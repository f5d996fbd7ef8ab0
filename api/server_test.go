package api

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-humanity-index/query"
	"github.com/rony4d/go-humanity-index/registry"
	"github.com/rony4d/go-humanity-index/store"
)

var alice = common.HexToAddress("0x0000000000000000000000000000000000000001")

func newTestServer(t *testing.T, halted bool) *Server {
	t.Helper()
	require := require.New(t)

	log := logrus.New()
	log.SetOutput(ioutil.Discard)
	s := store.New(memorydb.New(), log)

	require.NoError(s.BeginBlock(42))
	require.NoError(s.SetSubmission(alice, &registry.Submission{
		Status:     registry.StatusNone,
		Registered: true,
		Name:       "alice",
	}))
	require.NoError(s.SetCheckpoint(store.Position{Block: 42, Records: 3}))
	require.NoError(s.Commit())

	return New(query.New(s), s, func() bool { return halted }, log)
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	require := require.New(t)
	w := get(t, newTestServer(t, false), "/status")
	require.Equal(http.StatusOK, w.Code)
	require.Equal("application/json", w.Header().Get("Content-Type"))

	var status Status
	require.NoError(json.Unmarshal(w.Body.Bytes(), &status))
	require.Equal(uint64(42), status.LastBlock)
	require.Equal(uint32(3), status.Records)
	require.False(status.Halted)
}

func TestStatusEndpointReportsHalt(t *testing.T) {
	require := require.New(t)
	w := get(t, newTestServer(t, true), "/status")
	require.Equal(http.StatusOK, w.Code)

	var status Status
	require.NoError(json.Unmarshal(w.Body.Bytes(), &status))
	require.True(status.Halted)
}

func TestSubmissionEndpoint(t *testing.T) {
	require := require.New(t)
	w := get(t, newTestServer(t, false), "/submissions/"+alice.Hex())
	require.Equal(http.StatusOK, w.Code)

	var view query.SubmissionView
	require.NoError(json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(alice, view.ID)
	require.Equal("None", view.Status)
	require.True(view.Registered)
	require.Equal("alice", view.Name)
}

func TestSubmissionEndpointNotFound(t *testing.T) {
	w := get(t, newTestServer(t, false), "/submissions/0x0000000000000000000000000000000000000099")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmissionEndpointRejectsBadAddress(t *testing.T) {
	w := get(t, newTestServer(t, false), "/submissions/not-an-address")
	require.Equal(t, http.StatusBadRequest, w.Code)
}
