package httpadapter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/design-smith/AWSDataScanner/internal/adapters/memory"
	jobsvc "github.com/design-smith/AWSDataScanner/internal/services/jobs"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.ObjectStore) {
	t.Helper()
	store := memory.NewStore()
	objects := memory.NewObjectStore()
	queue := memory.NewQueue(memory.QueueConfig{})
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := jobsvc.New(store, objects, queue, log)
	srv := httptest.NewServer(New(svc, queue, log).Routes())
	t.Cleanup(srv.Close)
	return srv, objects
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmitAndGetJob(t *testing.T) {
	srv, objects := newTestServer(t)
	objects.Put("corp-data", "exports/a.txt", []byte("x\n"))

	resp, err := http.Post(srv.URL+"/jobs", "application/json",
		strings.NewReader(`{"name":"audit","s3_bucket":"corp-data","s3_prefix":"exports/"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"pending"`)
	assert.Contains(t, string(body), `"total_objects":1`)
}

func TestSubmitEmptyPrefix(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/jobs", "application/json",
		strings.NewReader(`{"name":"audit","s3_bucket":"corp-data","s3_prefix":"nothing/"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetJobValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/jobs/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/jobs/7e4f9a52-b86f-4f2e-a81f-8e2a2f8a1c11")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeadLettersEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/deadletters")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"tasks":[]`)
}
