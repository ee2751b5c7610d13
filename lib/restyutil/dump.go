package restyutil

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// messageId produces a sortable, filesystem safe name for an exchange.
func messageId(seq uint64, rawUrl string) string {
	name := rawUrl
	parsed, err := url.Parse(rawUrl)
	if err == nil {
		name = parsed.Host + parsed.Path
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	if len(name) > 96 {
		name = name[:96]
	}
	return fmt.Sprintf("%05d_%s.txt", seq, name)
}

// DumpExchanges writes every completed request/response pair to `output`.
// it is a no-op if `output` is nil.
func DumpExchanges(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := messageId(atomic.AddUint64(&counter, 1), res.Request.URL)
		output.Write(id, formatHttpMessage(res))
		slog.DebugContext(
			res.Request.Context(), "dumped http exchange",
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"message_id", id,
		)
		return nil
	})
}
