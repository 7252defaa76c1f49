package offlinecache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"time"
)

// FetchedOnHeader carries the time, in Unix milliseconds, a dynamic entry was fetched.
const FetchedOnHeader = "Sw-Fetched-On"

const (
	offlineMessage        = "MoodMend is offline right now, please try again later"
	offlineNoCacheMessage = "MoodMend is offline and has no cached data for this request"
)

// OfflineIndicator is the body served for API requests that cannot reach the network.
type OfflineIndicator struct {
	Success bool   `json:"success"`
	Offline bool   `json:"offline"`
	Message string `json:"message"`
}

func offlineResponse(req *http.Request, message string) (*http.Response, error) {
	body, err := json.Marshal(OfflineIndicator{Success: false, Offline: true, Message: message})
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// cloneResponse drains res and returns two independent copies of it.
func cloneResponse(res *http.Response, req *http.Request) (*http.Response, *http.Response, error) {
	resb, err := httputil.DumpResponse(res, true)
	if err != nil {
		return nil, nil, err
	}
	a, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resb)), req)
	if err != nil {
		return nil, nil, err
	}
	b, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resb)), req)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
