// Package main is a CI-friendly smoke test for the wishsync realtime gateway.
//
// Given a running server and a public access token it checks:
//   - handshake + subprotocol selection
//   - the subscribed confirmation
//   - reserve over HTTP -> item_reserved signal on every subscriber
//   - unreserve over HTTP -> item_unreserved signal on every subscriber
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "wishsync/shared/contracts/realtime/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	name      string
	conn      *websocket.Conn
	sessionID string

	inbox chan v1.Envelope
	errCh chan error
}

type publicItem struct {
	ID       string `json:"id"`
	Reserved bool   `json:"reserved"`
}

type publicResponse struct {
	Role     string `json:"role"`
	Wishlist struct {
		ID    string       `json:"id"`
		Items []publicItem `json:"items"`
	} `json:"wishlist"`
}

func main() {
	var (
		baseURL = flag.String("base", "http://127.0.0.1:8080", "Server base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		token   = flag.String("token", "", "Public access token of a wishlist with at least one unreserved item")
		itemID  = flag.String("item", "", "Item to reserve (default: first unreserved item)")
		name    = flag.String("name", "smoke", "Display name used for the reservation")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if strings.TrimSpace(*token) == "" {
		fatalf("missing -token")
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	base := strings.TrimRight(*baseURL, "/")

	root := context.Background()

	pub := mustGetPublic(root, base, *token, *timeout)
	wishlistID := pub.Wishlist.ID
	target := *itemID
	if target == "" {
		for _, it := range pub.Wishlist.Items {
			if !it.Reserved {
				target = it.ID
				break
			}
		}
	}
	if target == "" {
		fatalf("no unreserved item on wishlist %s", wishlistID)
	}

	wsURL := wsBase(base) + "/ws/wishlists/" + url.PathEscape(wishlistID)
	if err := validateWSURL(wsURL); err != nil {
		fatalf("invalid ws url: %v", err)
	}

	a := mustConnect(root, "A", wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s wishlist=%s item=%s\n", a.sessionID, b.sessionID, wishlistID, target)
	}

	mustPostGuest(root, base, *token, target, "reserve", map[string]string{"display_name": *name}, *timeout)
	mustAssertSignal(root, a, wishlistID, target, v1.EventItemReserved, *timeout)
	mustAssertSignal(root, b, wishlistID, target, v1.EventItemReserved, *timeout)

	mustPostGuest(root, base, *token, target, "unreserve", nil, *timeout)
	mustAssertSignal(root, a, wishlistID, target, v1.EventItemUnreserved, *timeout)
	mustAssertSignal(root, b, wishlistID, target, v1.EventItemUnreserved, *timeout)

	fmt.Printf("OK: A=%s B=%s wishlist_id=%s item_id=%s\n", a.sessionID, b.sessionID, wishlistID, target)
}

func wsBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustGetPublic(parent context.Context, base, token string, stepTimeout time.Duration) publicResponse {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	var out publicResponse
	mustDoJSON(ctx, http.MethodGet, base+"/api/wishlists/public/"+url.PathEscape(token), nil, &out)
	if out.Wishlist.ID == "" {
		fatalf("public view missing wishlist id")
	}
	return out
}

func mustPostGuest(parent context.Context, base, token, itemID, action string, body any, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	path := "/api/wishlists/public/" + url.PathEscape(token) + "/items/" + url.PathEscape(itemID) + "/" + action
	mustDoJSON(ctx, http.MethodPost, base+path, body, nil)
}

func mustDoJSON(ctx context.Context, method, u string, body, dst any) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(mustJSON(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		fatalf("build request %s %s: %v", method, u, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode/100 != 2 {
		fatalf("%s %s: status=%d body=%s", method, u, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			fatalf("decode %s %s: %v", method, u, err)
		}
	}
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, v1.Subprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	sub := c.mustReadUntilType(parent, v1.TypeSubscribed, stepTimeout, nil)

	var p v1.SubscribedPayload
	if err := json.Unmarshal(sub.Payload, &p); err != nil {
		fatalf("unmarshal subscribed payload (%s): %v", name, err)
	}
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("subscribed missing session_id (%s)", name)
	}
	c.sessionID = p.SessionID

	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

// mustAssertSignal waits for the given event, skipping unrelated signals
// other writers may cause on a shared wishlist.
func mustAssertSignal(parent context.Context, c *smokeClient, wishlistID, itemID, event string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env := c.mustReadUntilType(ctx, v1.TypeSignal, stepTimeout, nil)
		if env.WishlistID != wishlistID {
			fatalf("signal wishlist_id mismatch (%s): got=%q want=%q", c.name, env.WishlistID, wishlistID)
		}
		var p v1.SignalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal signal payload (%s): %v", c.name, err)
		}
		if p.Event == event && p.ItemID == itemID {
			return
		}
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration, skipTypes map[string]struct{}) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			if skipTypes != nil {
				if _, ok := skipTypes[env.Type]; ok {
					continue
				}
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
