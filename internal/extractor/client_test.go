package extractor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	os.Exit(m.Run())
}

// helperClient re-executes the test binary as a fake extraction program.
func helperClient(mode string, timeout time.Duration) *Client {
	return NewClient(Config{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--"},
		Timeout: timeout,
		Env:     []string{"GO_WANT_EXTRACTOR_HELPER=1", "EXTRACTOR_HELPER_MODE=" + mode},
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_EXTRACTOR_HELPER") != "1" {
		return
	}
	defer os.Exit(0)

	var req Request
	line, _ := bufio.NewReader(os.Stdin).ReadBytes('\n')
	if err := json.Unmarshal(line, &req); err != nil || req.Version != ProtocolVersion {
		fmt.Println(`{"type":"error","message":"bad request"}`)
		return
	}

	switch os.Getenv("EXTRACTOR_HELPER_MODE") {
	case "ok":
		fmt.Println(`{"type":"log","level":"info","message":"processing"}`)
		fmt.Printf(`{"type":"result","data":{"success":true,"invoices_count":1,"invoices":[{"invoice_number":"INV-9","tax_amount":"18","file":%q}]}}`+"\n", req.Files[0])
	case "sleep":
		fmt.Println(`{"type":"log","message":"thinking"}`)
		time.Sleep(30 * time.Second)
	case "malformed":
		fmt.Println(`[RESULT] {"success": true`)
	case "noresult":
		fmt.Println(`{"type":"log","message":"done"}`)
	case "exit":
		fmt.Println(`{"type":"log","message":"crashing"}`)
		os.Exit(3)
	case "errorframe":
		fmt.Println(`{"type":"error","message":"quota exhausted","retryable":true}`)
	case "twice":
		fmt.Println(`{"type":"result","data":{"success":true}}`)
		fmt.Println(`{"type":"result","data":{"success":true}}`)
	}
}

func TestExtractResult(t *testing.T) {
	res, err := helperClient("ok", 10*time.Second).Extract(context.Background(), []string{"/tmp/a.pdf"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.InvoicesCount)
	require.Len(t, res.Invoices, 1)
	assert.Equal(t, "INV-9", res.Invoices[0]["invoice_number"])
	assert.Equal(t, "/tmp/a.pdf", res.Invoices[0]["file"])
	assert.Contains(t, string(res.Raw), `"success":true`)
}

func TestExtractTimeoutIsRetryable(t *testing.T) {
	start := time.Now()
	_, err := helperClient("sleep", 300*time.Millisecond).Extract(context.Background(), []string{"a.pdf"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, appErr.IsCode(err, appErr.CodeDeadline))
	retry, known := appErr.Retryable(err)
	assert.True(t, known)
	assert.True(t, retry)
}

func TestExtractFailuresAreNotRetryable(t *testing.T) {
	for _, mode := range []string{"malformed", "noresult", "exit", "twice"} {
		t.Run(mode, func(t *testing.T) {
			_, err := helperClient(mode, 10*time.Second).Extract(context.Background(), []string{"a.pdf"})
			require.Error(t, err)
			assert.True(t, appErr.IsCode(err, appErr.CodeDependency))
			retry, known := appErr.Retryable(err)
			assert.True(t, known)
			assert.False(t, retry)
		})
	}
}

func TestExtractErrorFrameCarriesHint(t *testing.T) {
	_, err := helperClient("errorframe", 10*time.Second).Extract(context.Background(), []string{"a.pdf"})
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeDependency))
	retry, _ := appErr.Retryable(err)
	assert.True(t, retry)
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestExtractMissingBinary(t *testing.T) {
	c := NewClient(Config{Command: "/nonexistent/extractor", Timeout: time.Second})
	_, err := c.Extract(context.Background(), nil)
	assert.True(t, appErr.IsCode(err, appErr.CodeDependency))
}

func TestTailBuffer(t *testing.T) {
	var tb tailBuffer
	big := make([]byte, tailLimit+10)
	for i := range big {
		big[i] = 'a'
	}
	_, _ = tb.Write(big)
	_, _ = tb.Write([]byte("END"))
	assert.Len(t, tb.String(), tailLimit)
	assert.Equal(t, "END", tb.String()[tailLimit-3:])
}
