package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghxstship/atlvs-sub007/pkg/audit"
	"github.com/ghxstship/atlvs-sub007/pkg/query"
)

// recordingAudit captures entries for assertions.
type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) events() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Event
	}
	return out
}

type handlerFixture struct {
	router  *mux.Router
	members *fakeMembers
	audit   *recordingAudit
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	members := newFakeMembers()
	ownership := newFakeOwnership()
	ownership.set(EntityAssets, "asset-1", "o1", Ownership{AssignedTo: "u1", Status: StatusInUse})

	resolver := NewResolver(DefaultRoleTable(), members)
	authorizer := NewAuthorizer(resolver, ownership)
	scoper := NewScoper(resolver)
	rec := &recordingAudit{}

	router := mux.NewRouter()
	NewHandlers(resolver, authorizer, scoper, rec, nil).RegisterRoutes(router)
	return &handlerFixture{router: router, members: members, audit: rec}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestPermissionsEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.members.set("u1", "o1", RoleManager)

	w := f.do(t, http.MethodGet, "/orgs/o1/permissions?user_id=u1&entity=assets", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Grants PermissionSet `json:"grants"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Grants.Can(ActionUpdate))
	assert.False(t, resp.Grants.Can(ActionDelete))
}

func TestPermissionsEndpointValidation(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/orgs/o1/permissions?entity=assets", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/orgs/o1/permissions?user_id=u1&entity=vendors", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecisionEndpointAllowsAndDenies(t *testing.T) {
	f := newHandlerFixture(t)
	f.members.set("u1", "o1", RoleMember)

	w := f.do(t, http.MethodPost, "/orgs/o1/decisions", decisionRequest{
		UserID: "u1", Entity: EntityAssets, Action: ActionRead,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var d Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.True(t, d.Allowed)

	// The override: a member updating an asset they hold.
	w = f.do(t, http.MethodPost, "/orgs/o1/decisions", decisionRequest{
		UserID: "u1", Entity: EntityAssets, ResourceID: "asset-1", Action: ActionUpdate,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.True(t, d.Allowed)

	w = f.do(t, http.MethodPost, "/orgs/o1/decisions", decisionRequest{
		UserID: "u1", Entity: EntityAssets, Action: ActionDelete,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientPermission, d.Reason)

	assert.Contains(t, f.audit.events(), audit.EventAccessDenied)
}

func TestDecisionEndpointUnavailable(t *testing.T) {
	f := newHandlerFixture(t)
	f.members.err = errors.New("connection refused")

	w := f.do(t, http.MethodPost, "/orgs/o1/decisions", decisionRequest{
		UserID: "u1", Entity: EntityAssets, Action: ActionRead,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, f.audit.events(), audit.EventUnavailable)
}

func TestModuleAccessEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.members.set("u1", "o1", RoleViewer)

	w := f.do(t, http.MethodGet, "/orgs/o1/module-access?user_id=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp["allowed"])

	w = f.do(t, http.MethodGet, "/orgs/o1/module-access?user_id=stranger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp["allowed"])
	assert.Contains(t, f.audit.events(), audit.EventModuleDenied)
}

func TestFieldAccessEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.members.set("u1", "o1", RoleManager)

	w := f.do(t, http.MethodGet, "/orgs/o1/field-access?user_id=u1&entity=assets&field=purchase_price&access=read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp["allowed"])

	w = f.do(t, http.MethodGet, "/orgs/o1/field-access?user_id=u1&entity=assets&field=assigned_to&access=write", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp["allowed"])
}

func TestScopeEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.members.set("u1", "o1", RoleMember)

	w := f.do(t, http.MethodPost, "/orgs/o1/scope", scopeRequest{
		UserID: "u1", Entity: EntityAssets,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp scopeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "assets", resp.Table)
	require.Len(t, resp.Clauses, 2)
	assert.Equal(t, []query.Condition{{Field: OrgField, Value: "o1"}}, resp.Clauses[0].Any)
	assert.Len(t, resp.Clauses[1].Any, 2)
}

func TestInvalidateEndpointGranularities(t *testing.T) {
	f := newHandlerFixture(t)
	f.members.set("u1", "o1", RoleMember)

	resolveOnce := func() {
		w := f.do(t, http.MethodGet, "/orgs/o1/permissions?user_id=u1&entity=assets", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	resolveOnce()
	resolveOnce()
	require.Equal(t, 1, f.members.calls)

	w := f.do(t, http.MethodPost, "/invalidate", invalidateRequest{UserID: "u1", OrgID: "o1"})
	require.Equal(t, http.StatusOK, w.Code)
	resolveOnce()
	assert.Equal(t, 2, f.members.calls)

	w = f.do(t, http.MethodPost, "/invalidate", invalidateRequest{UserID: "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	resolveOnce()
	assert.Equal(t, 3, f.members.calls)

	w = f.do(t, http.MethodPost, "/invalidate", invalidateRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	resolveOnce()
	assert.Equal(t, 4, f.members.calls)
	assert.Contains(t, f.audit.events(), audit.EventCacheFlush)

	w = f.do(t, http.MethodPost, "/invalidate", invalidateRequest{OrgID: "o1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
