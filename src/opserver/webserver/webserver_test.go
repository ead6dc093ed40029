package webserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/redquill/redquill/src/opserver/catalog"
	"github.com/redquill/redquill/src/opserver/config"
	"github.com/redquill/redquill/src/opserver/engine"
)

const testAbilities = `
- id: whoami
  name: Identify user
  executor: shell
  command: whoami
  parser:
    kind: kv
`

const testProfile = `
id: recon
name: Recon only
phases:
  - name: discovery
    abilities: [whoami]
`

const (
	testAgentKey = "squad-key"
	testPassword = "hunter2hunter2"
)

func testServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	abilityDir := t.TempDir()
	profileDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(abilityDir, "a.yml"), []byte(testAbilities), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(profileDir, "p.yml"), []byte(testProfile), 0o644))
	cat, err := catalog.Load(abilityDir, profileDir)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Config{
		JWTSecret:        "test-secret-for-webserver",
		AgentKey:         testAgentKey,
		OperatorPassHash: string(hash),
	}
	manager := engine.NewManager(cat, engine.NopStore{}, log.New(io.Discard, "", 0), nil, engine.Config{})
	return New(cfg, manager, cat, nil)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func login(t *testing.T, r *gin.Engine) map[string]string {
	t.Helper()
	w, out := doJSON(t, r, http.MethodPost, "/v1/auth/login", gin.H{"password": testPassword}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)
	return map[string]string{"Authorization": "Bearer " + token}
}

func agentHeaders() map[string]string {
	return map[string]string{"X-Agent-Key": testAgentKey}
}

func TestLogin(t *testing.T) {
	r := testServer(t)

	w, _ := doJSON(t, r, http.MethodPost, "/v1/auth/login", gin.H{"password": "wrong-password"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	login(t, r)
}

func TestOperatorEndpointsRequireJWT(t *testing.T) {
	r := testServer(t)

	w, _ := doJSON(t, r, http.MethodGet, "/v1/agents", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/v1/agents", nil, login(t, r))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBeaconRequiresAgentKey(t *testing.T) {
	r := testServer(t)

	w, _ := doJSON(t, r, http.MethodPost, "/v1/beacon", gin.H{"platform": "linux"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, out := doJSON(t, r, http.MethodPost, "/v1/beacon", gin.H{"platform": "linux"}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, out["id"], "first beacon assigns an identity")
}

func TestBeaconResultRoundTrip(t *testing.T) {
	r := testServer(t)

	// agent registers
	w, out := doJSON(t, r, http.MethodPost, "/v1/beacon",
		gin.H{"platform": "linux", "hostname": "web01", "interval": 30}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	agentID := out["id"].(string)
	require.Empty(t, out["commands"], "no work before an operation starts")

	// operator starts an operation
	auth := login(t, r)
	w, opOut := doJSON(t, r, http.MethodPost, "/v1/operations",
		gin.H{"name": "smoke", "profileId": "recon"}, auth)
	require.Equal(t, http.StatusCreated, w.Code)
	opID := opOut["id"].(string)

	// next beacon carries the rendered command
	w, out = doJSON(t, r, http.MethodPost, "/v1/beacon",
		gin.H{"id": agentID, "platform": "linux"}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	cmds := out["commands"].([]any)
	require.Len(t, cmds, 1)
	cmd := cmds[0].(map[string]any)
	require.Equal(t, "whoami", cmd["command"])
	linkID := cmd["linkId"].(string)

	// result comes back
	w, _ = doJSON(t, r, http.MethodPost, "/v1/results",
		gin.H{"id": agentID, "linkId": linkID, "output": "user=admin", "success": true}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	// duplicate submission is acknowledged, not rejected
	w, _ = doJSON(t, r, http.MethodPost, "/v1/results",
		gin.H{"id": agentID, "linkId": linkID, "output": "user=admin", "success": true}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	// stale report for someone else's link is rejected
	w, out = doJSON(t, r, http.MethodPost, "/v1/beacon", gin.H{"platform": "linux"}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	strangerID := out["id"].(string)
	w, _ = doJSON(t, r, http.MethodPost, "/v1/results",
		gin.H{"id": strangerID, "linkId": linkID, "output": "x", "success": false}, agentHeaders())
	require.Equal(t, http.StatusConflict, w.Code)

	// empty beacon drives finish detection
	w, out = doJSON(t, r, http.MethodPost, "/v1/beacon",
		gin.H{"id": agentID, "platform": "linux"}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, out["commands"])

	w, opOut = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/operations/%s", opID), nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "FINISHED", opOut["status"])
}

// A rejected submission must leave no trace: after a stranger's report for a
// link is refused, the owning agent's report with the identical link and
// output still goes through and completes the operation.
func TestRejectedResultDoesNotMaskOwner(t *testing.T) {
	r := testServer(t)

	w, out := doJSON(t, r, http.MethodPost, "/v1/beacon",
		gin.H{"platform": "linux", "hostname": "web01"}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	ownerID := out["id"].(string)

	auth := login(t, r)
	w, opOut := doJSON(t, r, http.MethodPost, "/v1/operations",
		gin.H{"name": "masking", "profileId": "recon"}, auth)
	require.Equal(t, http.StatusCreated, w.Code)
	opID := opOut["id"].(string)

	w, out = doJSON(t, r, http.MethodPost, "/v1/beacon",
		gin.H{"id": ownerID, "platform": "linux"}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	cmd := out["commands"].([]any)[0].(map[string]any)
	linkID := cmd["linkId"].(string)

	// stranger races the owner with the same link and output and is refused
	w, out = doJSON(t, r, http.MethodPost, "/v1/beacon", gin.H{"platform": "linux"}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	strangerID := out["id"].(string)
	w, _ = doJSON(t, r, http.MethodPost, "/v1/results",
		gin.H{"id": strangerID, "linkId": linkID, "output": "user=admin", "success": true}, agentHeaders())
	require.Equal(t, http.StatusConflict, w.Code)

	// the owner's identical report still lands
	w, out = doJSON(t, r, http.MethodPost, "/v1/results",
		gin.H{"id": ownerID, "linkId": linkID, "output": "user=admin", "success": true}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, out["duplicate"], "first accepted report must not be treated as a redelivery")

	w, out = doJSON(t, r, http.MethodPost, "/v1/beacon",
		gin.H{"id": ownerID, "platform": "linux"}, agentHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, out["commands"])

	w, opOut = doJSON(t, r, http.MethodGet, "/v1/operations/"+opID, nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "FINISHED", opOut["status"])
}

func TestCancelOperation(t *testing.T) {
	r := testServer(t)

	_, _ = doJSON(t, r, http.MethodPost, "/v1/beacon", gin.H{"platform": "linux"}, agentHeaders())
	auth := login(t, r)

	w, opOut := doJSON(t, r, http.MethodPost, "/v1/operations",
		gin.H{"name": "doomed", "profileId": "recon"}, auth)
	require.Equal(t, http.StatusCreated, w.Code)
	opID := opOut["id"].(string)

	w, _ = doJSON(t, r, http.MethodPost, "/v1/operations/"+opID+"/cancel", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)

	// second cancel conflicts
	w, _ = doJSON(t, r, http.MethodPost, "/v1/operations/"+opID+"/cancel", nil, auth)
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/v1/operations/missing/cancel", nil, auth)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOperationValidation(t *testing.T) {
	r := testServer(t)
	auth := login(t, r)

	// no agents registered yet
	w, _ := doJSON(t, r, http.MethodPost, "/v1/operations",
		gin.H{"name": "early", "profileId": "recon"}, auth)
	require.Equal(t, http.StatusConflict, w.Code)

	_, _ = doJSON(t, r, http.MethodPost, "/v1/beacon", gin.H{"platform": "linux"}, agentHeaders())

	w, _ = doJSON(t, r, http.MethodPost, "/v1/operations",
		gin.H{"name": "ghost", "profileId": "no-such-profile"}, auth)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/v1/operations", gin.H{"profileId": "recon"}, auth)
	require.Equal(t, http.StatusBadRequest, w.Code, "name is required")
}

func TestAbilityAndProfileListing(t *testing.T) {
	r := testServer(t)
	auth := login(t, r)

	w, out := doJSON(t, r, http.MethodGet, "/v1/abilities", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["abilities"], 1)

	w, out = doJSON(t, r, http.MethodGet, "/v1/profiles", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["profiles"], 1)
}
