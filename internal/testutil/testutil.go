package testutil

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func NoDiff(t *testing.T, want, got any, opts []cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// NewResponse builds a response to req as if it had been read off the wire.
func NewResponse(t *testing.T, req *http.Request, status int, body string) *http.Response {
	t.Helper()
	raw := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\n\r\n%s", status, http.StatusText(status), len(body), body)
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader([]byte(raw))), req)
	if err != nil {
		t.Fatal(err)
	}
	return res
}
