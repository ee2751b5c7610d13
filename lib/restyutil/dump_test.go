package restyutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu       sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id, contents string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages[id] = contents
}

func TestMessageId(t *testing.T) {
	require.Equal(t, "00001_www.cpalms.org_PreviewStandard_Preview_15236.txt",
		messageId(1, "https://www.cpalms.org/PreviewStandard/Preview/15236?x=1"))
	require.Equal(t, "00012_not_a_url.txt", messageId(12, "not a url"))
}

func TestDumpExchanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("<html>short and stout</html>"))
	}))
	defer srv.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	DumpExchanges(client, out)

	_, err := client.R().SetContext(context.Background()).Get(srv.URL + "/page")
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, out.messages, 1)
	for id, msg := range out.messages {
		require.True(t, strings.HasPrefix(id, "00001_"))
		require.Contains(t, msg, "GET "+srv.URL+"/page")
		require.Contains(t, msg, "418")
		require.Contains(t, msg, "X-Test: yes")
		require.Contains(t, msg, "short and stout")
	}
}
