// Package paycomtest provides an in-memory Paycom gateway that answers with
// correctly signed responses.
package paycomtest

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"ms-paycom/internal/paycom"
)

// Responder produces the reply for one request. The default approves.
type Responder func(g *Gateway, req map[string]string) paycom.Response

// Gateway records every request it receives. It implements the transport the
// payment machine posts through and http.Handler.
type Gateway struct {
	Key string
	// Route answers requests when nothing is enqueued. Nil approves.
	Route Responder

	mu       sync.Mutex
	requests []map[string]string
	queue    []Responder
	nextID   int
}

func NewGateway(key string) *Gateway {
	return &Gateway{Key: key, nextID: 100000000}
}

// Enqueue sets the responders for the next requests, in order. Once the queue
// is empty requests are approved.
func (g *Gateway) Enqueue(responders ...Responder) {
	g.mu.Lock()
	g.queue = append(g.queue, responders...)
	g.mu.Unlock()
}

// Requests returns a copy of the requests seen so far.
func (g *Gateway) Requests() []map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]map[string]string, len(g.requests))
	copy(out, g.requests)
	return out
}

// Types returns the "type" field of every request seen so far.
func (g *Gateway) Types() []string {
	var types []string
	for _, req := range g.Requests() {
		types = append(types, req[paycom.FieldType])
	}
	return types
}

func (g *Gateway) Post(_ context.Context, params *paycom.Params) (paycom.Response, error) {
	req := make(map[string]string, params.Len())
	for _, k := range params.Keys() {
		req[k] = params.Get(k)
	}
	return g.handle(req), nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		req[k] = r.PostForm.Get(k)
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write(EncodeResponse(g.handle(req)))
}

func (g *Gateway) handle(req map[string]string) paycom.Response {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	respond := Responder(Approve)
	if g.Route != nil {
		respond = g.Route
	}
	if len(g.queue) > 0 {
		respond = g.queue[0]
		g.queue = g.queue[1:]
	}
	g.mu.Unlock()
	return respond(g, req)
}

func (g *Gateway) transactionID(req map[string]string) string {
	if id := req[paycom.FieldTransactionID]; id != "" {
		return id
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	return strconv.Itoa(g.nextID)
}

// Sign recomputes the response hash over resp with the gateway key.
func (g *Gateway) Sign(resp paycom.Response) paycom.Response {
	resp[paycom.FieldHash] = paycom.SignResponse(resp, g.Key)
	return resp
}

// Approve is the default responder.
func Approve(g *Gateway, req map[string]string) paycom.Response {
	return g.Sign(paycom.Response{
		paycom.FieldResponse:      paycom.ResponseApproved,
		paycom.FieldResponseText:  "SUCCESS",
		paycom.FieldResponseCode:  paycom.ResponseCodeSuccess,
		paycom.FieldTransactionID: g.transactionID(req),
		paycom.FieldOrderID:       req[paycom.FieldOrderID],
		paycom.FieldAmount:        req[paycom.FieldAmount],
		paycom.FieldAVSResponse:   "",
		paycom.FieldCVVResponse:   "",
		paycom.FieldTime:          req[paycom.FieldTime],
	})
}

// Decline answers response=2 with the given response_code.
func Decline(code string) Responder {
	return func(g *Gateway, req map[string]string) paycom.Response {
		resp := Approve(g, req)
		resp[paycom.FieldResponse] = paycom.ResponseDeclined
		resp[paycom.FieldResponseText] = "DECLINE"
		resp[paycom.FieldResponseCode] = code
		return g.Sign(resp)
	}
}

// SystemError answers response=3.
func SystemError(g *Gateway, req map[string]string) paycom.Response {
	resp := Approve(g, req)
	resp[paycom.FieldResponse] = paycom.ResponseError
	resp[paycom.FieldResponseCode] = "300"
	return g.Sign(resp)
}

// Tamper approves but changes field after signing.
func Tamper(field, value string) Responder {
	return func(g *Gateway, req map[string]string) paycom.Response {
		resp := Approve(g, req)
		resp[field] = value
		return resp
	}
}

// AVSMismatch approves with a non-empty avsresponse.
func AVSMismatch(code string) Responder {
	return func(g *Gateway, req map[string]string) paycom.Response {
		resp := Approve(g, req)
		resp[paycom.FieldAVSResponse] = code
		return g.Sign(resp)
	}
}

// EncodeResponse renders resp the way the gateway does: a sentinel byte,
// then "&"-joined pairs.
func EncodeResponse(resp paycom.Response) []byte {
	keys := make([]string, 0, len(resp))
	for k := range resp {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('\n')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(resp[k]))
	}
	return []byte(b.String())
}
