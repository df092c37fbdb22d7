package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Lllllllleong/imigraflow/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type backendCase struct {
	name string
	open func(t *testing.T) Backend
}

func backends() []backendCase {
	return []backendCase{
		{"memory", func(t *testing.T) Backend { return NewMemoryBackend() }},
		{"file", func(t *testing.T) Backend {
			b, err := NewFileBackend(t.TempDir(), "ns1", zaptest.NewLogger(t))
			require.NoError(t, err)
			return b
		}},
		{"redis", func(t *testing.T) Backend {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			b, err := NewRedisBackend(client, "ns1", zaptest.NewLogger(t))
			require.NoError(t, err)
			return b
		}},
	}
}

func sampleState() *models.GlobalState {
	date := "2025-01-10"
	return &models.GlobalState{
		UserIdentity:    models.UserIdentity{Name: "Ana Souza", Email: "ana@example.com", Token: "demo_token"},
		ActiveProcessID: "proc_can_1",
		Processes: []models.ImmigrationProcess{{
			ID:         "proc_can_1",
			Country:    "Canada",
			VisaType:   "Express Entry",
			Profession: "Enfermagem",
			Status:     models.ProcessPlanning,
			Config: models.ProcessConfig{
				Requirements: models.Requirements{
					DocumentsList: []models.RequiredDocument{{Name: "Passaporte", Required: true, Category: "Pessoal"}},
					ExamsList:     []models.Exam{{Name: "IELTS", TargetScore: "7.0", Type: models.ExamLanguage}},
				},
				FinancialBaseline: models.FinancialBaseline{Currency: "CAD", EstimatedGovFees: 1365, ProofOfFundsIndividual: 14690},
			},
			ActiveRoadmap: models.Roadmap{
				CurrentPhase: 0,
				NextActionID: "s1",
				Steps: []models.RoadmapStep{
					{ID: "s1", Title: "Validar diploma", Status: models.StepPending, ActionType: models.ActionUpload},
					{ID: "s2", Title: "IELTS", Status: models.StepLocked},
					{ID: "s3", Title: "Perfil", Status: models.StepLocked},
				},
			},
			UploadedDocuments: []models.UploadedDocument{
				{DocName: "Passaporte", Status: models.DocumentApproved, Date: &date},
			},
		}},
	}
}

func TestStore_GlobalStateRoundTrip(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()
			s := New(bc.open(t), zaptest.NewLogger(t))

			want := sampleState()
			require.NoError(t, s.SaveGlobalState(ctx, want))

			got, err := s.LoadGlobalState(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_MissingAndCorrupt(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()
			b := bc.open(t)
			s := New(b, zaptest.NewLogger(t))

			has, err := s.HasGlobalState(ctx)
			require.NoError(t, err)
			assert.False(t, has)

			_, err = s.LoadGlobalState(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Set(ctx, models.GlobalStateKey, []byte("{not json")))
			_, err = s.LoadGlobalState(ctx)
			assert.ErrorIs(t, err, ErrCorruptState)
		})
	}
}

func TestStore_ClearAllAndLogout(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()
			s := New(bc.open(t), zaptest.NewLogger(t))

			require.NoError(t, s.SaveGlobalState(ctx, sampleState()))
			require.NoError(t, s.SaveChatHistory(ctx, []models.Message{{ID: "init", Role: models.RoleModel, Content: "Olá"}}))

			require.NoError(t, s.RemoveGlobalState(ctx))
			has, err := s.HasGlobalState(ctx)
			require.NoError(t, err)
			assert.False(t, has)

			history, err := s.LoadChatHistory(ctx)
			require.NoError(t, err)
			assert.Len(t, history, 1, "logout keeps the chat log")

			require.NoError(t, s.SaveGlobalState(ctx, sampleState()))
			require.NoError(t, s.ClearAll(ctx))

			has, err = s.HasGlobalState(ctx)
			require.NoError(t, err)
			assert.False(t, has)
			history, err = s.LoadChatHistory(ctx)
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestStore_UpdateGlobalState(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), zaptest.NewLogger(t))

	_, err := s.UpdateGlobalState(ctx, func(*models.GlobalState) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveGlobalState(ctx, sampleState()))

	updated, err := s.UpdateGlobalState(ctx, func(st *models.GlobalState) error {
		st.Processes[0].Status = models.ProcessInProgress
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessInProgress, updated.Processes[0].Status)

	reloaded, err := s.LoadGlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessInProgress, reloaded.Processes[0].Status)

	_, err = s.UpdateGlobalState(ctx, func(st *models.GlobalState) error {
		st.Processes = nil
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	reloaded, err = s.LoadGlobalState(ctx)
	require.NoError(t, err)
	assert.Len(t, reloaded.Processes, 1, "failed update must not be written")
}

func TestStore_UpsertGlobalState(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := New(backend, zaptest.NewLogger(t))

	created, err := s.UpsertGlobalState(ctx, func(st *models.GlobalState) error {
		st.UserIdentity.Name = "Ana"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", created.UserIdentity.Name)
	assert.NotNil(t, created.Processes)

	require.NoError(t, backend.Set(ctx, models.GlobalStateKey, []byte("{broken")))
	replaced, err := s.UpsertGlobalState(ctx, func(st *models.GlobalState) error {
		st.UserIdentity.Name = "Bia"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Bia", replaced.UserIdentity.Name)

	reloaded, err := s.LoadGlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bia", reloaded.UserIdentity.Name)
}

func TestStore_ChatHistoryDropsAttachmentData(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), zaptest.NewLogger(t))

	msgs := []models.Message{{
		ID:          "1",
		Role:        models.RoleUser,
		Content:     "veja",
		Attachments: []models.Attachment{{Name: "doc.png", Type: "image/png", Data: "aGVsbG8="}},
	}}
	require.NoError(t, s.SaveChatHistory(ctx, msgs))

	got, err := s.LoadChatHistory(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc.png", got[0].Attachments[0].Name)
	assert.Empty(t, got[0].Attachments[0].Data)
	assert.Equal(t, "aGVsbG8=", msgs[0].Attachments[0].Data, "caller's slice is untouched")
}

func TestStore_UnreadableChatHistoryIsEmpty(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Set(ctx, models.ChatHistoryKey, []byte(`{"oops":true}`)))

	got, err := New(b, zaptest.NewLogger(t)).LoadChatHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SubscribeUnsupported(t *testing.T) {
	b := &FirestoreBackend{}
	_, err := New(b, nil).Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrWatchUnsupported)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, validateName("imigra_global_state"))
	assert.ErrorIs(t, validateName("../etc"), ErrInvalidName)
	assert.ErrorIs(t, validateName(""), ErrInvalidName)
}

func waitChange(t *testing.T, ch <-chan Change, match func(Change) bool) Change {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			require.True(t, ok, "watch channel closed early")
			if match(c) {
				return c
			}
		case <-timeout:
			t.Fatal("timed out waiting for change")
		}
	}
}

func drain(ch <-chan Change) {
	for range ch {
	}
}

func TestWatch_Backends(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			b := bc.open(t)
			s := New(b, zaptest.NewLogger(t))

			ch, err := s.Subscribe(ctx)
			require.NoError(t, err)

			require.NoError(t, s.SaveGlobalState(context.Background(), sampleState()))
			c := waitChange(t, ch, func(c Change) bool { return c.Key == models.GlobalStateKey && !c.Deleted })
			assert.False(t, c.Cleared)

			require.NoError(t, s.RemoveGlobalState(context.Background()))
			waitChange(t, ch, func(c Change) bool { return c.Key == models.GlobalStateKey && c.Deleted })

			cancel()
			drain(ch)
		})
	}
}

func TestFileBackend_WatchSeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	reader, err := NewFileBackend(dir, "shared", zaptest.NewLogger(t))
	require.NoError(t, err)
	writer, err := NewFileBackend(dir, "shared", zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := reader.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Set(context.Background(), models.ChatHistoryKey, []byte("[]")))
	waitChange(t, ch, func(c Change) bool { return c.Key == models.ChatHistoryKey })

	cancel()
	drain(ch)
}

func TestRedisBackend_ClearPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b, err := NewRedisBackend(client, "ns2", zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, b.Set(ctx, "imigra_chat_history", []byte("[]")))
	assert.True(t, mr.Exists("imigra:ns2:imigra_chat_history"))

	wctx, cancel := context.WithCancel(ctx)
	ch, err := b.Watch(wctx)
	require.NoError(t, err)

	require.NoError(t, b.Clear(ctx))
	waitChange(t, ch, func(c Change) bool { return c.Cleared })
	assert.False(t, mr.Exists("imigra:ns2:imigra_chat_history"))
	assert.False(t, mr.Exists("imigra:ns2:keys"))

	cancel()
	drain(ch)
}
