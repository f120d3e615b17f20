package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/metrics"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/chimera-labs/trend-skills/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

// MockChannel is a mock implementation of Channel
type MockChannel struct {
	mock.Mock
	name string
}

func (m *MockChannel) Name() string { return m.name }

func (m *MockChannel) Supports(action string) bool {
	return action == models.ActionPublishPost
}

func (m *MockChannel) Publish(ctx context.Context, env models.Environment, intent models.ExecutionIntent) (string, error) {
	args := m.Called(env, intent.IntentID)
	return args.String(0), args.Error(1)
}

// fakeSender records messages instead of dialing SMTP
type fakeSender struct {
	messages []*gomail.Message
	err      error
}

func (s *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, m...)
	return nil
}

func request(env models.Environment, channel, action string) models.ExecutionIntentRequest {
	return models.ExecutionIntentRequest{
		Environment: env,
		Intent: models.ExecutionIntent{
			IntentID: "intent-1",
			PlanID:   "plan-1",
			TaskID:   "task-1",
			Action:   action,
			Channel:  channel,
			Content: models.IntentContent{
				Title:     "Weekly trends",
				Body:      "AI video tooling is spiking",
				MediaRefs: []string{"media/plan-1/task-1.txt"},
			},
			Metadata: map[string]string{"goal": "g1"},
		},
	}
}

func assertStatusInvariant(t *testing.T, resp *models.ExecutionIntentResponse) {
	t.Helper()
	switch resp.Status {
	case models.IntentExecuted:
		require.NotNil(t, resp.ExternalRef)
		assert.NotEmpty(t, *resp.ExternalRef)
		assert.Nil(t, resp.Error)
	case models.IntentFailed:
		require.NotNil(t, resp.Error)
		assert.Equal(t, models.KindExecutionFailure, resp.Error.Kind)
		assert.Nil(t, resp.ExternalRef)
	default:
		t.Fatalf("unexpected final status %q", resp.Status)
	}
}

func TestExecutor_ValidationErrors(t *testing.T) {
	live := &MockChannel{name: "teams"}
	executor := NewExecutor(nil, nil, live)

	tests := []struct {
		name   string
		mutate func(*models.ExecutionIntentRequest)
	}{
		{name: "Unknown environment", mutate: func(r *models.ExecutionIntentRequest) { r.Environment = "qa" }},
		{name: "Missing intent id", mutate: func(r *models.ExecutionIntentRequest) { r.Intent.IntentID = "" }},
		{name: "Missing action", mutate: func(r *models.ExecutionIntentRequest) { r.Intent.Action = "" }},
		{name: "Missing channel", mutate: func(r *models.ExecutionIntentRequest) { r.Intent.Channel = "" }},
		{name: "Unregistered channel", mutate: func(r *models.ExecutionIntentRequest) { r.Intent.Channel = "fax" }},
		{name: "Unsupported action", mutate: func(r *models.ExecutionIntentRequest) { r.Intent.Action = models.ActionSendAlert }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(models.EnvironmentProduction, "teams", models.ActionPublishPost)
			tt.mutate(&req)

			resp, err := executor.Run(context.Background(), req)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Nil(t, resp)
		})
	}

	live.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestExecutor_SandboxNeverReachesLiveChannel(t *testing.T) {
	live := &MockChannel{name: "teams"}
	store := storage.NewMemoryStorage()
	m := metrics.New("test")
	executor := NewExecutor(store, m, live)

	req := request(models.EnvironmentSandbox, "Teams", models.ActionPublishPost)
	resp, err := executor.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "intent-1", resp.IntentID)
	assert.Equal(t, models.IntentExecuted, resp.Status)
	assertStatusInvariant(t, resp)
	assert.True(t, strings.HasPrefix(*resp.ExternalRef, "sandbox:"))

	deliveries := executor.Sandbox().Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, *resp.ExternalRef, deliveries[0].Ref)
	assert.Equal(t, "Weekly trends", deliveries[0].Intent.Content.Title)

	// the recorded intent must not alias the caller's request
	req.Intent.Metadata["goal"] = "changed"
	assert.Equal(t, "g1", executor.Sandbox().Deliveries()[0].Intent.Metadata["goal"])

	live.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

	data, err := store.Retrieve(context.Background(), AuditPrefix+"intent-1.json")
	require.NoError(t, err)
	var record AuditRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "sandbox", record.Channel)
	assert.Equal(t, models.IntentExecuted, record.Response.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsByStatus.WithLabelValues("sandbox", "executed")))
}

func TestExecutor_ConcurrentSandboxRuns(t *testing.T) {
	const workers = 32

	store := storage.NewMemoryStorage()
	m := metrics.New("test")
	executor := NewExecutor(store, m, &MockChannel{name: "teams"})

	base := request(models.EnvironmentSandbox, "teams", models.ActionPublishPost)
	responses := make([]*models.ExecutionIntentResponse, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := base
			req.Intent.IntentID = fmt.Sprintf("intent-%d", i)
			responses[i], errs[i] = executor.Run(context.Background(), req)
		}(i)
	}
	wg.Wait()

	refs := make(map[string]bool, workers)
	seen := make(map[*models.ExecutionIntentResponse]bool, workers)
	for i, resp := range responses {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("intent-%d", i), resp.IntentID)
		assert.Equal(t, models.IntentExecuted, resp.Status)
		assertStatusInvariant(t, resp)
		assert.False(t, seen[resp], "responses must not be shared between calls")
		seen[resp] = true
		refs[*resp.ExternalRef] = true
	}
	assert.Len(t, refs, workers)

	deliveries := executor.Sandbox().Deliveries()
	require.Len(t, deliveries, workers)
	delivered := make(map[string]bool, workers)
	for _, d := range deliveries {
		assert.True(t, refs[d.Ref])
		delivered[d.Intent.IntentID] = true
	}
	assert.Len(t, delivered, workers)

	audits, err := store.List(context.Background(), AuditPrefix)
	require.NoError(t, err)
	assert.Len(t, audits, workers)

	assert.Equal(t, float64(workers), testutil.ToFloat64(m.IntentsByStatus.WithLabelValues("sandbox", "executed")))
	assert.Equal(t, float64(workers), testutil.ToFloat64(m.SkillInvocations.WithLabelValues(metrics.SkillPublishIntent, "ok")))
}

func TestExecutor_LiveChannelOutcomes(t *testing.T) {
	tests := []struct {
		name           string
		ref            string
		err            error
		expectedStatus models.IntentStatus
	}{
		{name: "Delivered", ref: "msg-42", expectedStatus: models.IntentExecuted},
		{name: "Channel error", err: errors.New("webhook down"), expectedStatus: models.IntentFailed},
		{name: "No reference returned", ref: "", expectedStatus: models.IntentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := &MockChannel{name: "teams"}
			live.On("Publish", models.EnvironmentStaging, "intent-1").Return(tt.ref, tt.err)

			m := metrics.New("test")
			executor := NewExecutor(nil, m, live)

			resp, err := executor.Run(context.Background(), request(models.EnvironmentStaging, "teams", models.ActionPublishPost))
			require.NoError(t, err, "execution failures are reported as data")

			assert.Equal(t, tt.expectedStatus, resp.Status)
			assertStatusInvariant(t, resp)
			if tt.err != nil {
				assert.Contains(t, resp.Error.Message, "webhook down")
			}

			assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsByStatus.WithLabelValues("staging", string(tt.expectedStatus))))
			live.AssertExpectations(t)
		})
	}
}

func TestTeamsChannel_Publish(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/staging", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("1"))
	}))
	defer server.Close()

	channel := NewTeamsChannel(&config.Config{
		TeamsWebhookURL:        server.URL + "/production",
		TeamsStagingWebhookURL: server.URL + "/staging",
	})

	req := request(models.EnvironmentStaging, "teams", models.ActionSendAlert)
	ref, err := channel.Publish(context.Background(), models.EnvironmentStaging, req.Intent)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "teams:"))

	assert.Equal(t, "MessageCard", received.Type)
	assert.Equal(t, "ALERT: Weekly trends", received.Title)
	assert.Equal(t, "d13438", received.ThemeColor)
	require.Len(t, received.Sections, 2)
	assert.Contains(t, received.Sections[0].Facts, TeamsFact{Name: "goal", Value: "g1"})
}

func TestTeamsChannel_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	channel := NewTeamsChannel(&config.Config{TeamsWebhookURL: server.URL})
	intent := request(models.EnvironmentProduction, "teams", models.ActionPublishPost).Intent

	_, err := channel.Publish(context.Background(), models.EnvironmentProduction, intent)
	assert.Error(t, err)

	_, err = channel.Publish(context.Background(), models.EnvironmentStaging, intent)
	assert.ErrorContains(t, err, "no Teams webhook configured for staging")
}

func TestEmailChannel_Publish(t *testing.T) {
	sender := &fakeSender{}
	channel := NewEmailChannel(&config.Config{
		SMTPUsername:             "bot@example.com",
		NotificationEmail:        "team@example.com",
		StagingNotificationEmail: "staging@example.com",
	})
	channel.sender = sender

	intent := request(models.EnvironmentProduction, "email", models.ActionPublishPost).Intent

	ref, err := channel.Publish(context.Background(), models.EnvironmentStaging, intent)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "email:"))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, []string{"staging@example.com"}, sender.messages[0].GetHeader("To"))
	assert.Equal(t, []string{"Weekly trends"}, sender.messages[0].GetHeader("Subject"))

	intent.Target = "ceo@example.com"
	intent.Action = models.ActionSendAlert
	_, err = channel.Publish(context.Background(), models.EnvironmentProduction, intent)
	require.NoError(t, err)
	require.Len(t, sender.messages, 2)
	assert.Equal(t, []string{"ceo@example.com"}, sender.messages[1].GetHeader("To"))
	assert.Equal(t, []string{"[ALERT] Weekly trends"}, sender.messages[1].GetHeader("Subject"))
}

func TestEmailChannel_Failures(t *testing.T) {
	channel := NewEmailChannel(&config.Config{})
	channel.sender = &fakeSender{err: errors.New("connection refused")}
	intent := request(models.EnvironmentProduction, "email", models.ActionPublishPost).Intent

	_, err := channel.Publish(context.Background(), models.EnvironmentStaging, intent)
	assert.ErrorContains(t, err, "no email recipient")

	intent.Target = "someone@example.com"
	_, err = channel.Publish(context.Background(), models.EnvironmentProduction, intent)
	assert.ErrorContains(t, err, "connection refused")
}

func TestBuildEmailText(t *testing.T) {
	text := buildEmailText(models.IntentContent{Title: "T", Body: "B", MediaRefs: []string{"a.png"}})
	assert.Equal(t, "T\n\nB\n\nMedia:\n  a.png\n", text)
}
