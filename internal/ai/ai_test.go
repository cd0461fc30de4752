package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/legal-consult-backend/internal/auth"
	"github.com/aldoetobex/legal-consult-backend/internal/testutil"
	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/database"
	"github.com/aldoetobex/legal-consult-backend/pkg/models"
)

/* ============================== Fakes ================================== */

// backend records what the AI service received and answers with a canned body.
type backend struct {
	mu       sync.Mutex
	path     string
	fields   map[string]string
	fileName string
	status   int
	reply    string
}

func (b *backend) handler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.path = r.URL.Path
	b.fields = map[string]string{}
	b.fileName = ""
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		for k, v := range r.MultipartForm.Value {
			b.fields[k] = v[0]
		}
		for _, fhs := range r.MultipartForm.File {
			b.fileName = fhs[0].Filename
		}
	}
	w.Header().Set("Content-Type", "application/json")
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, b.reply)
}

type memHistory struct {
	mu       sync.Mutex
	chats    []*models.Chat
	messages []models.Message
	fail     error
}

func (m *memHistory) CreateChat(_ context.Context, ch *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	ch.ID = uuid.New()
	ch.UpdatedAt = time.Now()
	m.chats = append(m.chats, ch)
	return nil
}

func (m *memHistory) AddMessages(_ context.Context, chatID uuid.UUID, msgs ...*models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	found := false
	for _, ch := range m.chats {
		if ch.ID == chatID {
			found = true
		}
	}
	if !found {
		return apperr.NotFound("Chat not found")
	}
	for _, msg := range msgs {
		msg.ChatID = chatID
		m.messages = append(m.messages, *msg)
	}
	return nil
}

func (m *memHistory) Chat(_ context.Context, id uuid.UUID) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.chats {
		if ch.ID == id {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memHistory) ListChats(_ context.Context, userID string) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Chat{}
	for i := len(m.chats) - 1; i >= 0; i-- {
		if m.chats[i].UserID == userID {
			out = append(out, *m.chats[i])
		}
	}
	return out, nil
}

func (m *memHistory) Messages(_ context.Context, chatID uuid.UUID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Message{}
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func newService(t *testing.T, b *backend) (*Service, *memHistory) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(b.handler))
	t.Cleanup(srv.Close)
	hist := &memHistory{}
	client := NewClient(srv.URL, 5*time.Second, testutil.QuietLogger())
	return NewService(client, hist, testutil.QuietLogger()), hist
}

func boolPtr(b bool) *bool { return &b }

/* ============================== Service ================================ */

func TestAskRouting(t *testing.T) {
	cases := []struct {
		name     string
		in       AskInput
		endpoint string
		fileID   string
	}{
		{"uploaded file", AskInput{Prompt: "q", HasUploadedFile: true, FileID: "f-1", ContractText: "c"}, EndpointAskContext, "f-1"},
		{"flag without id", AskInput{Prompt: "q", HasUploadedFile: true, ContractText: "contract"}, EndpointAskExisting, ""},
		{"contract text", AskInput{Prompt: "q", ContractText: "contract"}, EndpointAskExisting, ""},
		{"blank contract", AskInput{Prompt: "q", ContractText: "   "}, EndpointChat, ""},
		{"general", AskInput{Prompt: "q"}, EndpointChat, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &backend{reply: `{"response":"ok"}`}
			svc, _ := newService(t, b)
			res, err := svc.Ask(context.Background(), tc.in)
			require.NoError(t, err)
			assert.Equal(t, "ok", res.Response)
			assert.Equal(t, tc.endpoint, b.path)
			assert.Equal(t, "q", b.fields["query"])
			assert.Equal(t, tc.fileID, b.fields["file_id"])
		})
	}
}

func TestAskResponsePriorityAndFormatting(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{`{"response":"r","answer":"a"}`, "r"},
		{`{"answer":"a","comparison_analysis":"c"}`, "a"},
		{`{"comparison_analysis":"c"}`, "c"},
		{`{"other":"x"}`, noResponse},
		{`{"response":"Intro\n\n\n\n* one\n+ two\n**Bold** stays"}`, "Intro\n\n- one\n- two\n**Bold** stays"},
	}
	for _, tc := range cases {
		b := &backend{reply: tc.reply}
		svc, _ := newService(t, b)
		res, err := svc.Ask(context.Background(), AskInput{Prompt: "q"})
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Response)
		assert.Nil(t, res.Saved)
	}
}

func TestAskSavesHistory(t *testing.T) {
	b := &backend{reply: `{"answer":"The answer"}`}
	svc, hist := newService(t, b)
	ctx := context.Background()
	long := strings.Repeat("x", 60)

	res, err := svc.Ask(ctx, AskInput{Prompt: long, UserID: "u1", ContractText: "nda.pdf"})
	require.NoError(t, err)
	require.NotNil(t, res.Saved)
	assert.True(t, *res.Saved)
	require.Len(t, hist.chats, 1)
	assert.Equal(t, strings.Repeat("x", 50)+"...", hist.chats[0].Title)
	assert.Equal(t, "nda.pdf", hist.chats[0].FileName)
	assert.Equal(t, hist.chats[0].ID.String(), res.ChatID)

	require.Len(t, hist.messages, 2)
	assert.Equal(t, models.ChatSenderUser, hist.messages[0].Sender)
	assert.Equal(t, long, hist.messages[0].Content)
	assert.Equal(t, models.ChatSenderAI, hist.messages[1].Sender)
	assert.Equal(t, "The answer", hist.messages[1].Content)

	// continuing an existing chat adds messages only
	res, err = svc.Ask(ctx, AskInput{Prompt: "short", UserID: "u1", ChatID: res.ChatID})
	require.NoError(t, err)
	assert.True(t, *res.Saved)
	assert.Len(t, hist.chats, 1)
	assert.Len(t, hist.messages, 4)

	// opting out skips persistence
	res, err = svc.Ask(ctx, AskInput{Prompt: "q", UserID: "u1", SaveToHistory: boolPtr(false)})
	require.NoError(t, err)
	assert.Nil(t, res.Saved)
	assert.Len(t, hist.messages, 4)
}

func TestAskSaveFailureStillAnswers(t *testing.T) {
	b := &backend{reply: `{"response":"still here"}`}
	svc, hist := newService(t, b)
	hist.fail = errors.New("db down")

	res, err := svc.Ask(context.Background(), AskInput{Prompt: "q", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "still here", res.Response)
	require.NotNil(t, res.Saved)
	assert.False(t, *res.Saved)
	assert.Equal(t, saveFailed, res.Error)
	assert.Empty(t, res.ChatID)

	hist.fail = nil
	res, err = svc.Ask(context.Background(), AskInput{Prompt: "q", UserID: "u1", ChatID: uuid.NewString()})
	require.NoError(t, err)
	assert.False(t, *res.Saved)
}

func TestAskBackendError(t *testing.T) {
	b := &backend{status: http.StatusBadGateway, reply: `{"error":"model overloaded"}`}
	svc, _ := newService(t, b)
	_, err := svc.Ask(context.Background(), AskInput{Prompt: "q"})
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindDownstream, ae.Kind)
	assert.Equal(t, "model overloaded", ae.Message)
}

func TestAskBackendDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, testutil.QuietLogger())
	svc := NewService(client, &memHistory{}, testutil.QuietLogger())
	_, err := svc.Ask(context.Background(), AskInput{Prompt: "q"})
	assert.True(t, apperr.Is(err, apperr.KindDownstream))
}

func TestDefendCase(t *testing.T) {
	b := &backend{reply: `{"defense_strategy":"Plan\n\n\n\n  * argue\n- object","response":"ignored"}`}
	svc, _ := newService(t, b)

	text, err := svc.DefendCase(context.Background(), DefendInput{CaseSummary: "theft", Charges: "larceny", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Plan\n\n- argue\n- object", text)
	assert.Equal(t, EndpointDefendCase, b.path)
	assert.Equal(t, map[string]string{"case_summary": "theft", "charges": "larceny", "user_id": "u1"}, b.fields)

	b.reply = `{}`
	text, err = svc.DefendCase(context.Background(), DefendInput{CaseSummary: "x"})
	require.NoError(t, err)
	assert.Equal(t, noDefenseStrategy, text)

	b.status, b.reply = http.StatusInternalServerError, `{}`
	_, err = svc.DefendCase(context.Background(), DefendInput{CaseSummary: "x"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to get defense strategy", ae.Message)
}

func TestSaveWithDocument(t *testing.T) {
	svc, hist := newService(t, &backend{})
	data := []byte("%PDF-1.7 test")

	ch, stored, err := svc.SaveWithDocument(context.Background(), DocumentChat{UserID: "u1", Question: "What is this?", FileName: "a.pdf", FileID: "f-9"}, data)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), ch.DocumentData)
	assert.Equal(t, int64(len(data)), ch.DocumentSize)
	assert.Equal(t, "application/pdf", ch.DocumentType)
	assert.Equal(t, "f-9", ch.FileID)

	_, stored, err = svc.SaveWithDocument(context.Background(), DocumentChat{UserID: "u1", Question: "q"}, nil)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Len(t, hist.chats, 2)
}

/* ============================== Handlers =============================== */

func newApp(svc *Service, middleware ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	for _, m := range middleware {
		app.Use(m)
	}
	h := NewHandler(svc)
	app.Post("/api/ai", h.Ask)
	app.Post("/api/ai/ask-upload", h.AskUpload)
	app.Post("/api/ai/defend-case", h.DefendCase)
	app.Get("/api/chats", h.ListChats)
	app.Get("/api/messages", h.ListMessages)
	app.Post("/api/chats/save-with-document", h.SaveWithDocument)
	return app
}

func send(t *testing.T, app *fiber.App, method, path, contentType string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := app.Test(req, 5000)
	require.NoError(t, err)
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func form(t *testing.T, fields map[string]string, fileField, fileName, content string) (string, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf
}

func TestAskRoute(t *testing.T) {
	b := &backend{reply: `{"response":"hi"}`}
	svc, _ := newService(t, b)
	app := newApp(svc)

	status, body := send(t, app, "POST", "/api/ai", "application/json", strings.NewReader(`{"prompt":"hello","userId":"u1"}`))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "hi", body["response"])
	assert.Equal(t, true, body["saved"])
	chatID := body["chatId"].(string)

	status, body = send(t, app, "GET", "/api/messages?chatId="+chatID, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["messages"], 2)

	status, body = send(t, app, "GET", "/api/chats?userId=u1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["chats"], 1)

	status, _ = send(t, app, "POST", "/api/ai", "application/json", strings.NewReader(`{"userId":"u1"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)

	b.status, b.reply = http.StatusInternalServerError, `{"error":"boom"}`
	status, body = send(t, app, "POST", "/api/ai", "application/json", strings.NewReader(`{"prompt":"x"}`))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "boom", body["error"])
}

func TestChatHistoryBelongsToItsUser(t *testing.T) {
	b := &backend{reply: `{"response":"hi"}`}
	svc, hist := newService(t, b)
	owner := newApp(svc, testutil.InjectAuth("u1", "client"))

	status, body := send(t, owner, "POST", "/api/ai", "application/json", strings.NewReader(`{"prompt":"hello","userId":"u1"}`))
	require.Equal(t, fiber.StatusOK, status)
	chatID := body["chatId"].(string)

	status, body = send(t, owner, "GET", "/api/messages?chatId="+chatID, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["messages"], 2)

	other := newApp(svc, testutil.InjectAuth("u2", "client"))
	status, _ = send(t, other, "GET", "/api/messages?chatId="+chatID, "", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = send(t, other, "GET", "/api/messages?chatId="+uuid.NewString(), "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	// appending to someone else's chat is refused and nothing is stored
	status, body = send(t, other, "POST", "/api/ai", "application/json",
		strings.NewReader(`{"prompt":"mine now","userId":"u2","chatId":"`+chatID+`"}`))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["saved"])
	assert.Len(t, hist.messages, 2)
}

func TestAskUploadRelaysVerbatim(t *testing.T) {
	b := &backend{status: http.StatusUnprocessableEntity, reply: `{"detail":"bad file","extra":1}`}
	svc, _ := newService(t, b)
	app := newApp(svc)

	ct, buf := form(t, map[string]string{"query": "summarise"}, "file", "lease.pdf", "%PDF-1.4")
	status, body := send(t, app, "POST", "/api/ai/ask-upload", ct, buf)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "bad file", body["detail"])
	assert.Equal(t, float64(1), body["extra"])
	assert.Equal(t, EndpointAskUpload, b.path)
	assert.Equal(t, "summarise", b.fields["query"])
	assert.Equal(t, "lease.pdf", b.fileName)
}

func TestDefendCaseRoute(t *testing.T) {
	b := &backend{reply: `{"response":"Strategy"}`}
	svc, _ := newService(t, b)
	app := newApp(svc)

	status, body := send(t, app, "POST", "/api/ai/defend-case", "application/json",
		strings.NewReader(`{"caseSummary":"s","evidence":"e"}`))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Strategy", body["response"])
	assert.Equal(t, "e", b.fields["evidence"])

	ct, buf := form(t, map[string]string{"case_summary": "from form"}, "file", "evidence.txt", "text")
	status, body = send(t, app, "POST", "/api/ai/defend-case", ct, buf)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "from form", b.fields["case_summary"])
	assert.Equal(t, "evidence.txt", b.fileName)

	b.status, b.reply = http.StatusBadRequest, `{"error":"missing summary"}`
	status, body = send(t, app, "POST", "/api/ai/defend-case", "application/json", strings.NewReader(`{}`))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "missing summary", body["error"])
}

func TestSaveWithDocumentRoute(t *testing.T) {
	svc, _ := newService(t, &backend{})
	app := newApp(svc)

	ct, buf := form(t, map[string]string{"userId": "u1", "question": "Is this valid?", "fileId": "f-1"}, "document", "contract.txt", "terms")
	status, body := send(t, app, "POST", "/api/chats/save-with-document", ct, buf)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, true, body["documentStored"])
	chat := body["chat"].(map[string]any)
	assert.Equal(t, "contract.txt", chat["fileName"])
	assert.NotContains(t, chat, "documentData")

	ct, buf = form(t, map[string]string{"question": "q"}, "", "", "")
	status, _ = send(t, app, "POST", "/api/chats/save-with-document", ct, buf)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = send(t, app, "GET", "/api/messages?chatId=nope", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

/* ======================= Store (real Postgres) ========================= */

func TestGormHistory(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()
	hist := NewHistory(database.Static{DB: db})

	first := &models.Chat{UserID: "u1", Title: "first"}
	second := &models.Chat{UserID: "u1", Title: "second", HasDocument: true, DocumentData: "AAAA"}
	require.NoError(t, hist.CreateChat(ctx, first))
	require.NoError(t, hist.CreateChat(ctx, second))

	require.NoError(t, hist.AddMessages(ctx, first.ID,
		&models.Message{Sender: models.ChatSenderUser, Content: "q"},
		&models.Message{Sender: models.ChatSenderAI, Content: "a"},
	))
	assert.True(t, apperr.Is(hist.AddMessages(ctx, uuid.New(), &models.Message{Sender: models.ChatSenderUser, Content: "x"}), apperr.KindNotFound))

	chats, err := hist.ListChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "first", chats[0].Title, "touched by the new messages")
	assert.Empty(t, chats[1].DocumentData)

	msgs, err := hist.Messages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.ChatSenderUser, msgs[0].Sender)

	got, err := hist.Chat(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Empty(t, got.DocumentData)

	got, err = hist.Chat(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}
