package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/wsd/bookstore/core/book"
	"github.com/wsd/bookstore/core/cart"
	"github.com/wsd/bookstore/core/order"
	"github.com/wsd/bookstore/core/user"
	"golang.org/x/sync/errgroup"
)

type orderTest struct {
	*TestEnv
}

func (ot *orderTest) checkout(t *testing.T) *http.Response {
	t.Helper()

	w, err := ot.Client().Post(ot.URL+"/orders", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func (ot *orderTest) checkoutOK(t *testing.T) order.Order {
	t.Helper()

	w := ot.checkout(t)
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't checkout: status code %s", w.Status)
	}

	var ord order.Order
	if err := json.NewDecoder(w.Body).Decode(&ord); err != nil {
		t.Fatalf("cannot unmarshal order: %v", err)
	}
	return ord
}

func (ot *orderTest) cancelOrder(t *testing.T, id string) *http.Response {
	t.Helper()

	r, err := http.NewRequest(http.MethodDelete, ot.URL+"/orders/"+id, nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func (ot *orderTest) showOrderOK(t *testing.T, id string) order.Detail {
	t.Helper()

	w, err := ot.Client().Get(ot.URL + "/orders/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't show order %s: status code %s", id, w.Status)
	}

	var det order.Detail
	if err := json.NewDecoder(w.Body).Decode(&det); err != nil {
		t.Fatalf("cannot unmarshal order detail: %v", err)
	}
	return det
}

func (ot *orderTest) listOrdersOK(t *testing.T) []order.Order {
	t.Helper()

	w, err := ot.Client().Get(ot.URL + "/orders")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list orders: status code %s", w.Status)
	}

	var orders []order.Order
	if err := json.NewDecoder(w.Body).Decode(&orders); err != nil {
		t.Fatalf("cannot unmarshal order list: %v", err)
	}
	return orders
}

var signupSeq int64

// signupClient registers a fresh user and returns a client carrying that
// user's session in its own cookie jar.
func signupClient(srv *httptest.Server) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar}

	us := user.UserSignup{
		Name:            "Second Buyer",
		Email:           fmt.Sprintf("buyer%d@test.com", atomic.AddInt64(&signupSeq, 1)),
		Password:        "buyer-pass",
		PasswordConfirm: "buyer-pass",
	}

	body, err := json.Marshal(us)
	if err != nil {
		return nil, err
	}

	w, err := client.Post(srv.URL+"/auth/signup", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		return nil, unexpectedStatus(w)
	}
	return client, nil
}

func TestCheckout(t *testing.T) {
	env, err := NewTestEnv(t, "checkout_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	bt := &bookTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	b1 := bt.createBookOK(t, 100, 5)
	b2 := bt.createBookOK(t, 300, 3)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	rt.addItemOK(t, b1.ID, 2)
	rt.addItemOK(t, b2.ID, 1)

	ord := ot.checkoutOK(t)

	if ord.Status != order.StatusCompleted {
		t.Fatalf("order status: got %s, want %s", ord.Status, order.StatusCompleted)
	}
	if want := 2*100 + 1*300; ord.TotalPrice != want {
		t.Fatalf("order total: got %d, want %d", ord.TotalPrice, want)
	}

	if got := bt.fetchBookOK(t, b1.ID).StockQuantity; got != 3 {
		t.Fatalf("stock of %s after checkout: got %d, want 3", b1.ID, got)
	}
	if got := bt.fetchBookOK(t, b2.ID).StockQuantity; got != 2 {
		t.Fatalf("stock of %s after checkout: got %d, want 2", b2.ID, got)
	}

	// The checked-out cart is gone; the user starts over with an empty one.
	if view := rt.showCartOK(t); len(view.Items) != 0 {
		t.Fatalf("cart should be empty after checkout, got %d items", len(view.Items))
	}

	det := ot.showOrderOK(t, ord.ID)
	if len(det.Items) != 2 {
		t.Fatalf("order lines: got %d, want 2", len(det.Items))
	}

	// A later price change must not touch the captured unit prices.
	newPrice := 9999
	bt.updateBookOK(t, b1.ID, book.BookUp{Price: &newPrice})

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}

	det = ot.showOrderOK(t, ord.ID)
	for _, item := range det.Items {
		switch item.BookID {
		case b1.ID:
			if item.UnitPrice != 100 || item.Quantity != 2 {
				t.Fatalf("line of %s changed: %+v", b1.ID, item)
			}
		case b2.ID:
			if item.UnitPrice != 300 || item.Quantity != 1 {
				t.Fatalf("line of %s changed: %+v", b2.ID, item)
			}
		default:
			t.Fatalf("unexpected order line for book %s", item.BookID)
		}
	}
	if det.TotalPrice != ord.TotalPrice {
		t.Fatalf("order total changed: got %d, want %d", det.TotalPrice, ord.TotalPrice)
	}

	orders := ot.listOrdersOK(t)
	if len(orders) != 1 || orders[0].ID != ord.ID {
		t.Fatalf("unexpected order list: %+v", orders)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	env, err := NewTestEnv(t, "checkout_empty_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	w := ot.checkout(t)
	w.Body.Close()
	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty checkout should be unprocessable: status code %s", w.Status)
	}
}

// TestCheckoutInsufficientStock exercises the all-or-nothing guarantee: when
// one line cannot be satisfied, reservations already made for earlier lines
// are rolled back and the cart survives untouched.
func TestCheckoutInsufficientStock(t *testing.T) {
	env, err := NewTestEnv(t, "checkout_insufficient_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	bt := &bookTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	b1 := bt.createBookOK(t, 100, 5)
	b2 := bt.createBookOK(t, 300, 3)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	rt.addItemOK(t, b1.ID, 2)
	rt.addItemOK(t, b2.ID, 5)

	w := ot.checkout(t)
	defer w.Body.Close()
	if w.StatusCode != http.StatusConflict {
		t.Fatalf("oversold checkout should conflict: status code %s", w.Status)
	}

	var body struct {
		Error  string `json:"error"`
		BookID string `json:"bookId"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("cannot unmarshal conflict body: %v", err)
	}
	if body.BookID != b2.ID {
		t.Fatalf("conflict should name the short book: got %q, want %q", body.BookID, b2.ID)
	}

	if got := bt.fetchBookOK(t, b1.ID).StockQuantity; got != 5 {
		t.Fatalf("stock of %s must be untouched: got %d, want 5", b1.ID, got)
	}
	if got := bt.fetchBookOK(t, b2.ID).StockQuantity; got != 3 {
		t.Fatalf("stock of %s must be untouched: got %d, want 3", b2.ID, got)
	}

	view := rt.showCartOK(t)
	if view.Status != cart.StatusActive || len(view.Items) != 2 {
		t.Fatalf("cart must survive a failed checkout: %+v", view)
	}

	if orders := ot.listOrdersOK(t); len(orders) != 0 {
		t.Fatalf("no order must exist after failed checkout, got %d", len(orders))
	}
}

func TestOrderCancel(t *testing.T) {
	env, err := NewTestEnv(t, "order_cancel_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	bt := &bookTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	b := bt.createBookOK(t, 250, 4)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	rt.addItemOK(t, b.ID, 3)
	ord := ot.checkoutOK(t)

	if got := bt.fetchBookOK(t, b.ID).StockQuantity; got != 1 {
		t.Fatalf("stock after checkout: got %d, want 1", got)
	}

	// A stranger must not be able to cancel the order.
	other, err := signupClient(env.Server)
	if err != nil {
		t.Fatal(err)
	}
	r, err := http.NewRequest(http.MethodDelete, env.URL+"/orders/"+ord.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	w, err := other.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	w.Body.Close()
	if w.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign cancel should be forbidden: status code %s", w.Status)
	}

	w = ot.cancelOrder(t, ord.ID)
	w.Body.Close()
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't cancel order: status code %s", w.Status)
	}

	// Cancellation returns every unit to stock, exactly once.
	if got := bt.fetchBookOK(t, b.ID).StockQuantity; got != 4 {
		t.Fatalf("stock after cancel: got %d, want 4", got)
	}

	w = ot.cancelOrder(t, ord.ID)
	w.Body.Close()
	if w.StatusCode != http.StatusConflict {
		t.Fatalf("second cancel should conflict: status code %s", w.Status)
	}

	if got := bt.fetchBookOK(t, b.ID).StockQuantity; got != 4 {
		t.Fatalf("stock after double cancel: got %d, want 4", got)
	}

	det := ot.showOrderOK(t, ord.ID)
	if det.Status != order.StatusCancelled {
		t.Fatalf("order status after cancel: got %s, want %s", det.Status, order.StatusCancelled)
	}

	w = ot.cancelOrder(t, "e1b2a932-21bc-4a41-9837-108a7b4a53f4")
	w.Body.Close()
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("cancel of unknown order should be not found: status code %s", w.Status)
	}
}

// TestCheckoutConcurrentUsers races two buyers over the last copy of a book.
// Exactly one checkout may succeed and the ledger must end at zero.
func TestCheckoutConcurrentUsers(t *testing.T) {
	env, err := NewTestEnv(t, "checkout_race_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	bt := &bookTest{env}

	b := bt.createBookOK(t, 100, 1)

	first, err := signupClient(env.Server)
	if err != nil {
		t.Fatal(err)
	}
	second, err := signupClient(env.Server)
	if err != nil {
		t.Fatal(err)
	}

	for _, client := range []*http.Client{first, second} {
		body, err := json.Marshal(cart.ItemNew{BookID: b.ID, Quantity: 1})
		if err != nil {
			t.Fatal(err)
		}
		w, err := client.Post(env.URL+"/cart/items", "application/json", bytes.NewBuffer(body))
		if err != nil {
			t.Fatal(err)
		}
		w.Body.Close()
		if w.StatusCode != http.StatusNoContent {
			t.Fatalf("can't fill cart: status code %s", w.Status)
		}
	}

	statuses := make([]int, 2)
	var g errgroup.Group
	for i, client := range []*http.Client{first, second} {
		i, client := i, client
		g.Go(func() error {
			w, err := client.Post(env.URL+"/orders", "application/json", nil)
			if err != nil {
				return err
			}
			defer w.Body.Close()
			statuses[i] = w.StatusCode
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	var created, conflicted int
	for _, code := range statuses {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Fatalf("unexpected checkout status %d", code)
		}
	}
	if created != 1 || conflicted != 1 {
		t.Fatalf("want exactly one winner: %d created, %d conflicted", created, conflicted)
	}

	if got := bt.fetchBookOK(t, b.ID).StockQuantity; got != 0 {
		t.Fatalf("final stock: got %d, want 0", got)
	}
}

// TestCheckoutConcurrentSameUser fires several checkouts of the same cart at
// once. The cart can be claimed only once, so exactly one order may appear.
func TestCheckoutConcurrentSameUser(t *testing.T) {
	env, err := NewTestEnv(t, "checkout_idempotent_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	bt := &bookTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	b := bt.createBookOK(t, 100, 10)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	rt.addItemOK(t, b.ID, 2)

	const attempts = 4
	statuses := make([]int, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			w, err := env.Client().Post(env.URL+"/orders", "application/json", nil)
			if err != nil {
				return err
			}
			defer w.Body.Close()
			statuses[i] = w.StatusCode
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	var created int
	for _, code := range statuses {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusUnprocessableEntity:
			// Lost the race for the cart; nothing left to check out.
		default:
			t.Fatalf("unexpected checkout status %d", code)
		}
	}
	if created != 1 {
		t.Fatalf("want exactly one order created, got %d", created)
	}

	if orders := ot.listOrdersOK(t); len(orders) != 1 {
		t.Fatalf("order list: got %d, want 1", len(orders))
	}

	if got := bt.fetchBookOK(t, b.ID).StockQuantity; got != 8 {
		t.Fatalf("final stock: got %d, want 8", got)
	}
}
