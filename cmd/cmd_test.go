package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	ws "github.com/SVAnbarasan/ZeroByX/adapters/websocket"
	"github.com/SVAnbarasan/ZeroByX/config"
	"github.com/SVAnbarasan/ZeroByX/usecase"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

func fakeOllama(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, c := range chunks {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", c)
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`+"\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runAgentWith(t *testing.T, stdin string) (string, error) {
	t.Helper()
	restore := log.Replace(zap.NewNop())
	t.Cleanup(restore)

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetContext(context.Background())
	c.SetIn(strings.NewReader(stdin))
	c.SetOut(&out)
	err := runAgent(c, nil)
	return out.String(), err
}

func TestAgent_StreamsThenPrintsLabelledReply(t *testing.T) {
	srv := fakeOllama(t, "Patch", " often")
	t.Setenv("OLLAMA_URL", srv.URL)
	t.Setenv("AGENT_TYPE", "seneca")

	out, err := runAgentWith(t, "how do attackers pivot?\n")
	require.NoError(t, err)
	assert.Equal(t, "Patch often\nAgent Seneca σ\nPatch often\n", out)
}

func TestAgent_NoInput(t *testing.T) {
	t.Setenv("AGENT_TYPE", "theta")

	out, err := runAgentWith(t, "  \n")
	assert.Equal(t, exitCode(1), err)
	assert.Equal(t, "Error: No input provided\n", out)
}

func TestAgent_NoResponse(t *testing.T) {
	srv := fakeOllama(t)
	t.Setenv("OLLAMA_URL", srv.URL)

	out, err := runAgentWith(t, "hello")
	assert.Equal(t, exitCode(1), err)
	assert.Equal(t, "Error: No response generated from model\n", out)
}

type scriptedRunner struct{}

func (scriptedRunner) Run(ctx context.Context, personaID, message string, emit func(string) error) error {
	if err := emit("## " + personaID); err != nil {
		return err
	}
	return emit(message)
}

func TestChatLoop(t *testing.T) {
	personas, err := config.LoadPersonas("", "")
	require.NoError(t, err)
	server := ws.NewServer(usecase.NewChatService(scriptedRunner{}, time.Minute), personas, []string{"*"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.RunHub(ctx)

	e := echo.New()
	e.GET("/ws", server.Handler)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var out bytes.Buffer
	require.NoError(t, chatLoop(conn, strings.NewReader("what is ssrf?\n\nexit\nignored\n"), &out, "epsilon"))

	got := out.String()
	assert.Contains(t, got, `<h2 class="section-header">epsilon</h2>`)
	assert.Contains(t, got, "what is ssrf?")
	assert.NotContains(t, got, "ignored")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "ws://localhost:5000/ws?token=xxxxx", redact("ws://localhost:5000/ws?token=secret"))
	assert.Equal(t, "ws://localhost:5000/ws", redact("ws://localhost:5000/ws"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, "exit status 3", exitCode(3).Error())
}
