package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memflow/lowcode-backend/internal/broker"
	"github.com/memflow/lowcode-backend/internal/gateway"
	"github.com/memflow/lowcode-backend/internal/model"
	"github.com/memflow/lowcode-backend/internal/queue"
	"github.com/memflow/lowcode-backend/internal/token"
)

// ----- fakes -----

type fakeTemplates struct {
	byKey    map[string]model.Template
	statuses map[string]model.TemplateStatus
}

func newFakeTemplates(tpls ...model.Template) *fakeTemplates {
	f := &fakeTemplates{byKey: map[string]model.Template{}, statuses: map[string]model.TemplateStatus{}}
	for _, t := range tpls {
		f.byKey[t.TemplateKey] = t
	}
	return f
}

func (f *fakeTemplates) GetByKey(_ context.Context, key string) (model.Template, error) {
	t, ok := f.byKey[key]
	if !ok {
		return model.Template{}, errNotFound
	}
	return t, nil
}

func (f *fakeTemplates) UpdateStatus(_ context.Context, key string, status model.TemplateStatus) error {
	t := f.byKey[key]
	t.Status = status
	f.byKey[key] = t
	f.statuses[key] = status
	return nil
}

var errNotFound = errors.New("not found")

type notifRecord struct {
	targetID uint64
	username string
	message  string
}

type fakeNotifications struct {
	created    []notifRecord
	markedRead []uint64
}

func (f *fakeNotifications) Create(_ context.Context, targetID uint64, username, message string) error {
	f.created = append(f.created, notifRecord{targetID, username, message})
	return nil
}

func (f *fakeNotifications) MarkReadByTarget(_ context.Context, targetID uint64) error {
	f.markedRead = append(f.markedRead, targetID)
	return nil
}

type fakeUsers struct{ byName map[string]model.User }

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return model.User{}, errNotFound
	}
	return u, nil
}

// recordingConn satisfies gateway.Conn and keeps what was written to it.
type recordingConn struct{ payloads []any }

func (r *recordingConn) WriteJSON(v any) error {
	r.payloads = append(r.payloads, v)
	return nil
}
func (r *recordingConn) Close() error { return nil }

func newService(t *testing.T, tpls *fakeTemplates, notifs *fakeNotifications, users *fakeUsers, b broker.Broker) (*ApprovalService, *[]queue.TemplateStatusEvent) {
	t.Helper()
	svc := NewApprovalService(tpls, notifs, users, b, zap.NewNop())
	var events []queue.TemplateStatusEvent
	svc.publishEvent = func(_ context.Context, ev queue.TemplateStatusEvent) error {
		events = append(events, ev)
		return nil
	}
	return svc, &events
}

func draftTemplate(id uint64, key, owner string) model.Template {
	return model.Template{
		ID:           id,
		TemplateKey:  key,
		TemplateName: "dashboard",
		Username:     owner,
		Status:       model.StatusDraft,
	}
}

// ----- unit tests against the fakes -----

func TestRequestApprovalMovesDraftToPending(t *testing.T) {
	tpls := newFakeTemplates(draftTemplate(7, "memory_flow_k1", "alice"))
	notifs := &fakeNotifications{}
	users := &fakeUsers{byName: map[string]model.User{}}

	svc, events := newService(t, tpls, notifs, users, broker.NewLocalBroker())

	err := svc.RequestApproval(context.Background(), "memory_flow_k1", "bob")
	require.NoError(t, err)
	svc.Wait()

	require.Equal(t, model.StatusPending, tpls.statuses["memory_flow_k1"])

	// Exactly one unread record, addressed to the chosen approver.
	require.Len(t, notifs.created, 1)
	require.Equal(t, notifRecord{7, "bob", "Template approval request"}, notifs.created[0])

	require.Len(t, *events, 1)
	require.Equal(t, "pending", (*events)[0].Status)
	require.Equal(t, "bob", (*events)[0].Approver)
}

func TestRequestApprovalRejectsNonDraft(t *testing.T) {
	tpl := draftTemplate(7, "memory_flow_k1", "alice")
	tpl.Status = model.StatusPending
	tpls := newFakeTemplates(tpl)
	notifs := &fakeNotifications{}

	svc, _ := newService(t, tpls, notifs, &fakeUsers{}, broker.NewLocalBroker())

	err := svc.RequestApproval(context.Background(), "memory_flow_k1", "bob")
	require.ErrorIs(t, err, ErrInvalidTransition)
	svc.Wait()

	require.Empty(t, notifs.created, "a refused transition must have no side effects")
	require.Empty(t, tpls.statuses)
}

func TestResolveTerminalStates(t *testing.T) {
	cases := []struct {
		name string
		act  func(svc *ApprovalService, key string) error
		want model.TemplateStatus
	}{
		{"approve", func(svc *ApprovalService, key string) error { return svc.Approve(context.Background(), key) }, model.StatusApproved},
		{"reject", func(svc *ApprovalService, key string) error { return svc.Reject(context.Background(), key) }, model.StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tpl := draftTemplate(9, "memory_flow_k2", "alice")
			tpl.Status = model.StatusPending
			tpls := newFakeTemplates(tpl)
			notifs := &fakeNotifications{}
			users := &fakeUsers{byName: map[string]model.User{
				"alice": {Username: "alice", RoleID: model.RolePublic},
			}}

			svc, _ := newService(t, tpls, notifs, users, broker.NewLocalBroker())

			require.NoError(t, tc.act(svc, "memory_flow_k2"))
			svc.Wait()

			require.Equal(t, tc.want, tpls.statuses["memory_flow_k2"])
			require.Equal(t, []uint64{9}, notifs.markedRead, "resolving must clear the originating notifications")
		})
	}
}

func TestResolveRejectsNonPending(t *testing.T) {
	for _, status := range []model.TemplateStatus{model.StatusDraft, model.StatusApproved, model.StatusRejected} {
		tpl := draftTemplate(3, "memory_flow_k3", "alice")
		tpl.Status = status
		tpls := newFakeTemplates(tpl)

		svc, _ := newService(t, tpls, &fakeNotifications{}, &fakeUsers{}, broker.NewLocalBroker())

		require.ErrorIs(t, svc.Approve(context.Background(), "memory_flow_k3"), ErrInvalidTransition, string(status))
		require.ErrorIs(t, svc.Reject(context.Background(), "memory_flow_k3"), ErrInvalidTransition, string(status))
		svc.Wait()
	}
}

// ----- end-to-end over the local broker and the connection registry -----

// frameOf flattens whatever the registry wrote into its wire shape.
func frameOf(t *testing.T, payload any) map[string]string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	var m map[string]string
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

// The full request/approve cycle: alice (public) submits, bob (admin) gets
// the unicast approval request, bob approves, alice gets the status-change
// push on the public queue.
func TestApprovalCycleReachesConnectedClients(t *testing.T) {
	tpls := newFakeTemplates(draftTemplate(11, "memory_flow_e2e", "alice"))
	notifs := &fakeNotifications{}
	users := &fakeUsers{byName: map[string]model.User{
		"alice": {Username: "alice", RoleID: model.RolePublic},
		"bob":   {Username: "bob", RoleID: model.RoleAdmin},
	}}

	b := broker.NewLocalBroker()
	svc, _ := newService(t, tpls, notifs, users, b)

	registry := gateway.NewRegistry()
	gw := gateway.NewHandler(token.New("a-secret", "r-secret", 0, 0), registry, zap.NewNop())
	require.NoError(t, gw.Bind(b))
	defer gw.Unbind(b)

	alice := &recordingConn{}
	bob := &recordingConn{}
	registry.Admit("conn-alice", "alice", gateway.ClassPublic, alice)
	registry.Admit("conn-bob", "bob", gateway.ClassAdmin, bob)

	require.NoError(t, svc.RequestApproval(context.Background(), "memory_flow_e2e", "bob"))
	svc.Wait()

	require.Len(t, bob.payloads, 1)
	frame := frameOf(t, bob.payloads[0])
	require.Equal(t, "requst-message", frame["event"])
	require.Equal(t, "You have a template awaiting approval", frame["message"])
	require.Empty(t, alice.payloads, "the submitter is not notified of their own request")

	require.NoError(t, svc.Approve(context.Background(), "memory_flow_e2e"))
	svc.Wait()

	require.Len(t, alice.payloads, 1)
	frame = frameOf(t, alice.payloads[0])
	require.Equal(t, "template-change-message", frame["event"])
	require.Equal(t, "Approval status updated", frame["message"])
	require.Equal(t, model.StatusApproved, tpls.byKey["memory_flow_e2e"].Status)

	// Bob saw only the original request; the owner push targeted the public
	// queue.
	require.Len(t, bob.payloads, 1)
}

// An admin-owned template gets its status push on the admin queue.
func TestOwnerNotificationFollowsRoleTier(t *testing.T) {
	tpl := draftTemplate(12, "memory_flow_adm", "bob")
	tpl.Status = model.StatusPending
	tpls := newFakeTemplates(tpl)
	users := &fakeUsers{byName: map[string]model.User{
		"bob": {Username: "bob", RoleID: model.RoleAdmin},
	}}

	b := broker.NewLocalBroker()
	svc, _ := newService(t, tpls, &fakeNotifications{}, users, b)

	registry := gateway.NewRegistry()
	gw := gateway.NewHandler(token.New("a-secret", "r-secret", 0, 0), registry, zap.NewNop())
	require.NoError(t, gw.Bind(b))
	defer gw.Unbind(b)

	bob := &recordingConn{}
	registry.Admit("conn-bob", "bob", gateway.ClassAdmin, bob)

	require.NoError(t, svc.Reject(context.Background(), "memory_flow_adm"))
	svc.Wait()

	require.Len(t, bob.payloads, 1)
	frame := frameOf(t, bob.payloads[0])
	require.Equal(t, "template-change-message", frame["event"])
}
