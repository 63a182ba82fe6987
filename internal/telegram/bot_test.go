package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wicksy-telegram-bot/internal/alert"
	"wicksy-telegram-bot/internal/commands"
	"wicksy-telegram-bot/internal/database"
	"wicksy-telegram-bot/internal/metrics"
	"wicksy-telegram-bot/internal/price"
)

type apiCall struct {
	method string
	form   map[string]string
}

// fakeAPI answers the Bot API methods the bot uses.
type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		_ = r.ParseMultipartForm(1 << 20)
	} else {
		_ = r.ParseForm()
	}
	form := make(map[string]string)
	for k, v := range r.Form {
		form[k] = v[0]
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, form: form})
	f.mu.Unlock()

	chatID, _ := strconv.ParseInt(form["chat_id"], 10, 64)
	message := map[string]any{"message_id": 55, "date": 0, "chat": map[string]any{"id": chatID, "type": "group"}}

	var result any
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "wicksy", "username": "wicksy_bot"}
	case "editMessageText":
		if form["text"] == "unchanged" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": false, "error_code": 400,
				"description": "Bad Request: message is not modified: specified new message content and reply markup are exactly the same",
			})
			return
		}
		result = message
	case "deleteMessage":
		result = true
	default:
		result = message
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeAPI) last() apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	bot, err := NewBot(BotConfig{Token: "test-token", APIEndpoint: server.URL + "/bot%s/%s"})
	require.NoError(t, err)
	return bot, api
}

func TestSendAndEditMessages(t *testing.T) {
	bot, api := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, bot.SendText(ctx, -100, "hello"))
	call := api.last()
	assert.Equal(t, "sendMessage", call.method)
	assert.Equal(t, "-100", call.form["chat_id"])
	assert.Equal(t, "MarkdownV2", call.form["parse_mode"])

	id, err := bot.PostText(ctx, -100, "table")
	require.NoError(t, err)
	assert.Equal(t, 55, id)

	require.NoError(t, bot.EditText(ctx, -100, 55, "new table"))
	assert.Equal(t, "editMessageText", api.last().method)
	assert.NoError(t, bot.EditText(ctx, -100, 55, "unchanged"))

	require.NoError(t, bot.DeleteMessage(ctx, -100, 55))
	assert.Equal(t, "deleteMessage", api.last().method)
	assert.Equal(t, "55", api.last().form["message_id"])
}

func commandUpdate(text string, chat *tgbotapi.Chat, fromID int64) tgbotapi.Update {
	command := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		Text:      text,
		Chat:      chat,
		From:      &tgbotapi.User{ID: fromID},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}},
	}}
}

func TestHandleUpdateDispatchesCommands(t *testing.T) {
	bot, api := newTestBot(t)
	ctx := context.Background()

	db, err := database.Open(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	dest := alert.NewDestination(db)
	m := metrics.New(prometheus.NewRegistry())
	bot.Attach(commands.NewHandler(db, price.NewSearcher(nil, nil), nil, dest, nil, nil), m)

	group := &tgbotapi.Chat{ID: -100, Type: "supergroup", Title: "Traders"}

	assert.Equal(t, commands.Help(), bot.HandleUpdate(ctx, commandUpdate("/start", group, 7)))

	reply := bot.HandleUpdate(ctx, commandUpdate("/alert setchannel", group, 7))
	assert.Contains(t, reply, "Alerts will post in this chat")
	chatID, ok := dest.Channel()
	require.True(t, ok)
	assert.Equal(t, int64(-100), chatID)

	reply = bot.HandleUpdate(ctx, commandUpdate("/trade add btc 60000 57000 66000", group, 7))
	assert.Contains(t, reply, "Trade idea: BTC")
	trades, err := db.ListTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(7), trades[0].Owner)

	bot.handleUpdate(ctx, commandUpdate("/alert list", group, 7))
	call := api.last()
	assert.Equal(t, "sendMessage", call.method)
	assert.Equal(t, `You have no alerts\.`, call.form["text"])
	assert.Equal(t, "10", call.form["reply_to_message_id"])

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesHandled))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsProcessed))
	assert.Equal(t, []int64{-100}, m.GroupChats())
}

func TestHandleUpdateReportsUnknownCoin(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.Attach(commands.NewHandler(nil, price.NewSearcher(nil, nil), nil, nil, nil, nil), nil)

	reply := bot.HandleUpdate(context.Background(), commandUpdate("/chart zzz", &tgbotapi.Chat{ID: 7, Type: "private"}, 7))
	assert.Equal(t, "Coin not found", reply)
}
