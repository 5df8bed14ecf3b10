package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/go-chat/memory"
)

// fakeAPI answers /responses with sequential ids and records request bodies.
type fakeAPI struct {
	mu       sync.Mutex
	requests []map[string]any
	status   int
	body     string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(raw, &req)
	f.requests = append(f.requests, req)

	w.Header().Set("Content-Type", "application/json")
	if !strings.HasSuffix(r.URL.Path, "/responses") {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"no route","type":"invalid_request_error"}}`)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
		return
	}
	if f.body != "" {
		_, _ = io.WriteString(w, f.body)
		return
	}
	prev, _ := req["previous_response_id"].(string)
	resp := map[string]any{
		"id":                   fmt.Sprintf("resp_%d", len(f.requests)),
		"object":               "response",
		"previous_response_id": prev,
		"output": []any{map[string]any{
			"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
			"content": []any{map[string]any{"type": "output_text", "text": "answer " + fmt.Sprint(len(f.requests)), "annotations": []any{}}},
		}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeAPI) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAPI) request(i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

// setup isolates the process environment in a fresh working directory and
// points the client at a local fake API.
func setup(t *testing.T) *fakeAPI {
	t.Helper()
	for _, k := range []string{
		"OPENAI_BASE_URL", "CHAT_MODEL", "CHAT_STATE_FILE", "CHAT_WEB_SEARCH", "CHAT_CONFIG",
		"CHAT_OBSERVE_JSON", "CHAT_PERSIST_API_PAYLOADS", "CHAT_ARTIFACTS_DIR",
	} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())

	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	t.Setenv("OPENAI_BASE_URL", srv.URL+"/v1")
	t.Setenv("OPENAI_API_KEY", "test-key")
	return api
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readState(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(memory.DefaultPath)
	require.NoError(t, err)
	return string(b)
}

func TestRun_ContinuesConversationAcrossInvocations(t *testing.T) {
	api := setup(t)

	code, out, _ := runCLI(t, "first question")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "You: first question")
	assert.Contains(t, out, "AI: answer 1")
	assert.Equal(t, "resp_1", readState(t))
	_, has := api.request(0)["previous_response_id"]
	assert.False(t, has, "first request must not link to a prior response")

	code, out, _ = runCLI(t, "follow up")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "AI: answer 2")
	assert.Equal(t, "resp_1", api.request(1)["previous_response_id"])
	assert.Equal(t, true, api.request(1)["store"])
	assert.Equal(t, "resp_2", readState(t))
}

func TestRun_ClearWithoutPrompt(t *testing.T) {
	api := setup(t)
	require.NoError(t, os.WriteFile(memory.DefaultPath, []byte("resp_old"), 0o644))

	code, out, _ := runCLI(t, "--clear")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Conversation history cleared!")
	_, err := os.Stat(memory.DefaultPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	code, out, _ = runCLI(t, "--clear")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No conversation history to clear.")
	assert.Zero(t, api.hits())
}

func TestRun_ClearWithBrokenConfig(t *testing.T) {
	cases := []struct {
		name      string
		toml      string
		env       map[string]string
		stateFile string
	}{
		{"malformed toml", "model = ", nil, memory.DefaultPath},
		{"invalid env value", "", map[string]string{"CHAT_WEB_SEARCH": "maybe"}, memory.DefaultPath},
		{"state file from config", "state_file = \"custom_id\"\n", map[string]string{"CHAT_WEB_SEARCH": "maybe"}, "custom_id"},
		{"state file from env", "model = ", map[string]string{"CHAT_STATE_FILE": "env_id"}, "env_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := setup(t)
			if tc.toml != "" {
				require.NoError(t, os.WriteFile("chat.toml", []byte(tc.toml), 0o644))
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			require.NoError(t, os.WriteFile(tc.stateFile, []byte("resp_x"), 0o644))

			code, out, errOut := runCLI(t, "--clear")
			assert.Equal(t, 0, code, "stderr: %s", errOut)
			assert.Contains(t, out, "Conversation history cleared!")
			assert.Contains(t, errOut, "Warning: ignoring configuration")
			_, err := os.Stat(tc.stateFile)
			assert.True(t, errors.Is(err, os.ErrNotExist))
			assert.Zero(t, api.hits())
		})
	}
}

func TestRun_BrokenConfigStillFailsPrompt(t *testing.T) {
	api := setup(t)
	require.NoError(t, os.WriteFile("chat.toml", []byte("model = "), 0o644))

	code, _, errOut := runCLI(t, "hello")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "parse config")
	assert.Zero(t, api.hits())
}

func TestRun_ClearIgnoresPromptAndKey(t *testing.T) {
	api := setup(t)
	t.Setenv("OPENAI_API_KEY", "")
	require.NoError(t, os.WriteFile(memory.DefaultPath, []byte("resp_old"), 0o644))

	code, out, _ := runCLI(t, "hello", "--clear")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Conversation history cleared!")
	assert.NotContains(t, out, "You:")
	assert.Zero(t, api.hits())
}

func TestRun_MissingAPIKeyMakesNoCall(t *testing.T) {
	api := setup(t)
	t.Setenv("OPENAI_API_KEY", "")
	// A value set to "" still counts as present for .env loading.
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))

	code, out, errOut := runCLI(t, "hello")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "OPENAI_API_KEY")
	assert.NotContains(t, out, "You:")
	assert.Zero(t, api.hits())
	_, err := os.Stat(memory.DefaultPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRun_APIKeyFromDotEnv(t *testing.T) {
	api := setup(t)
	t.Setenv("OPENAI_API_KEY", "")
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))
	require.NoError(t, os.WriteFile(".env", []byte("OPENAI_API_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("OPENAI_API_KEY") })

	code, _, _ := runCLI(t, "hello")
	assert.Equal(t, 0, code)
	assert.Equal(t, 1, api.hits())
}

func TestRun_MissingPromptPrintsUsage(t *testing.T) {
	api := setup(t)

	code, _, errOut := runCLI(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Usage: chat")
	assert.Contains(t, errOut, "--clear")
	assert.Contains(t, errOut, "please provide a prompt")
	assert.Zero(t, api.hits())

	code, _, _ = runCLI(t, "   ")
	assert.Equal(t, 1, code)
	assert.Zero(t, api.hits())
}

func TestRun_RemoteFailureKeepsPriorState(t *testing.T) {
	api := setup(t)
	api.status = http.StatusInternalServerError
	api.body = `{"error":{"message":"upstream exploded","type":"server_error"}}`
	require.NoError(t, os.WriteFile(memory.DefaultPath, []byte("resp_prior"), 0o644))

	code, out, errOut := runCLI(t, "hello")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "You: hello")
	assert.NotContains(t, out, "AI:")
	assert.Contains(t, errOut, "Error:")
	assert.Equal(t, "resp_prior", readState(t))
	assert.Equal(t, 1, api.hits(), "no retries")
}

func TestRun_RemoteFailureWritesNoState(t *testing.T) {
	api := setup(t)
	api.status = http.StatusUnauthorized
	api.body = `{"error":{"message":"bad key","type":"invalid_request_error"}}`

	code, _, errOut := runCLI(t, "hello")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bad key")
	_, err := os.Stat(memory.DefaultPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRun_FlagsAfterPrompt(t *testing.T) {
	api := setup(t)

	code, _, _ := runCLI(t, "hello", "--no-web-search", "--model", "gpt-test")
	require.Equal(t, 0, code)
	req := api.request(0)
	assert.Equal(t, "gpt-test", req["model"])
	assert.Equal(t, "hello", req["input"])
	_, hasTools := req["tools"]
	assert.False(t, hasTools)
}

func TestRun_WebSearchOnByDefault(t *testing.T) {
	api := setup(t)

	code, _, _ := runCLI(t, "hello")
	require.Equal(t, 0, code)
	tools, ok := api.request(0)["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	assert.Equal(t, "web_search_preview", tools[0].(map[string]any)["type"])
	assert.Equal(t, "gpt-4o-mini", api.request(0)["model"])
}

func TestRun_ConfigFileAndEnvOverrides(t *testing.T) {
	api := setup(t)
	require.NoError(t, os.WriteFile("chat.toml", []byte("model = \"from-file\"\nweb_search = false\nstate_file = \"state/conv\"\n"), 0o644))

	code, _, _ := runCLI(t, "hello")
	require.Equal(t, 0, code)
	assert.Equal(t, "from-file", api.request(0)["model"])
	_, hasTools := api.request(0)["tools"]
	assert.False(t, hasTools)
	b, err := os.ReadFile("state/conv")
	require.NoError(t, err)
	assert.Equal(t, "resp_1", string(b))

	t.Setenv("CHAT_MODEL", "from-env")
	code, _, _ = runCLI(t, "again")
	require.Equal(t, 0, code)
	assert.Equal(t, "from-env", api.request(1)["model"])
	assert.Equal(t, "resp_1", api.request(1)["previous_response_id"])
}

func TestRun_UsageErrors(t *testing.T) {
	api := setup(t)

	code, _, errOut := runCLI(t, "one", "two")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "single prompt")

	code, _, _ = runCLI(t, "--bogus", "hello")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "-h")
	assert.Equal(t, 0, code)
	assert.Zero(t, api.hits())
}

func TestRun_DoubleDashKeepsDashedPrompt(t *testing.T) {
	api := setup(t)

	code, _, _ := runCLI(t, "--no-web-search", "--", "--clear is a flag, right?")
	require.Equal(t, 0, code)
	assert.Equal(t, "--clear is a flag, right?", api.request(0)["input"])
}

func TestRun_SaveFailureStillPrintsAnswer(t *testing.T) {
	setup(t)
	// A regular file where the state directory should be makes the save fail.
	require.NoError(t, os.WriteFile("blocker", []byte("x"), 0o644))
	t.Setenv("CHAT_STATE_FILE", "blocker/conv")

	code, out, errOut := runCLI(t, "hello")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "AI: answer 1")
	assert.Contains(t, errOut, "Warning: could not save conversation ID")
}

func TestRun_StateFileOutsideWorkingDirRejected(t *testing.T) {
	api := setup(t)
	t.Setenv("CHAT_STATE_FILE", "../escape")

	code, _, errOut := runCLI(t, "hello")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "ERR_PATH_OUTSIDE_ROOT")
	assert.Zero(t, api.hits())
}

func TestRun_ToolOnlyReplyReportsIDs(t *testing.T) {
	api := setup(t)
	require.NoError(t, os.WriteFile(memory.DefaultPath, []byte("resp_prev"), 0o644))
	api.body = `{"id":"resp_tool","object":"response","previous_response_id":"resp_prev",
		"output":[{"type":"web_search_call","id":"ws_1","status":"completed"}]}`

	code, out, _ := runCLI(t, "search something")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No text content found in response")
	assert.Contains(t, out, "Response ID: resp_tool")
	assert.Contains(t, out, "Previous Response ID: resp_prev")
	assert.Equal(t, "resp_tool", readState(t))
}

func TestRun_TelemetryRecordsStateEvents(t *testing.T) {
	setup(t)
	t.Setenv("CHAT_OBSERVE_JSON", "1")

	code, _, _ := runCLI(t, "hello")
	require.Equal(t, 0, code)
	code, _, _ = runCLI(t, "--clear")
	require.Equal(t, 0, code)

	b, err := os.ReadFile(".chat/events.jsonl")
	require.NoError(t, err)
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		names = append(names, ev["event"].(string))
	}
	assert.Contains(t, names, "request_sent")
	assert.Contains(t, names, "response_received")
	assert.Contains(t, names, "state_saved")
	assert.Contains(t, names, "state_cleared")
}

// TestHelperProcess is not a real test; it runs main in a subprocess so the
// exit code can be observed.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	os.Args = append([]string{"chat"}, args...)
	main()
}

func TestMain_ExitCodes(t *testing.T) {
	setup(t)
	t.Setenv("OPENAI_API_KEY", "")

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"clear", []string{"--clear"}, 0},
		{"missing prompt", nil, 1},
		{"missing key", []string{"hello"}, 1},
		{"bad flag", []string{"--bogus"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], append([]string{"-test.run=^TestHelperProcess$", "--"}, tc.args...)...)
			cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
			err := cmd.Run()
			got := 0
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				got = exitErr.ExitCode()
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
