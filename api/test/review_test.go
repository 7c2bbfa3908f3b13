package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/wsd/bookstore/core/review"
)

type reviewTest struct {
	*TestEnv
}

func (vt *reviewTest) createReview(t *testing.T, bookID string, rn review.ReviewNew) *http.Response {
	t.Helper()

	body, err := json.Marshal(rn)
	if err != nil {
		t.Fatal(err)
	}

	w, err := vt.Client().Post(vt.URL+"/books/"+bookID+"/reviews", "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func (vt *reviewTest) listReviewsOK(t *testing.T, bookID string) []review.Review {
	t.Helper()

	w, err := vt.Client().Get(vt.URL + "/books/" + bookID + "/reviews")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list reviews: status code %s", w.Status)
	}

	var revs []review.Review
	if err := json.NewDecoder(w.Body).Decode(&revs); err != nil {
		t.Fatalf("cannot unmarshal review list: %v", err)
	}
	return revs
}

func TestReview(t *testing.T) {
	env, err := NewTestEnv(t, "review_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	bt := &bookTest{env}
	vt := &reviewTest{env}

	b := bt.createBookOK(t, 100, 5)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	w := vt.createReview(t, b.ID, review.ReviewNew{Rating: 4, Comment: "solid read"})
	defer w.Body.Close()
	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't create review: status code %s", w.Status)
	}

	var rev review.Review
	if err := json.NewDecoder(w.Body).Decode(&rev); err != nil {
		t.Fatalf("cannot unmarshal review: %v", err)
	}

	// One review per user and book.
	w2 := vt.createReview(t, b.ID, review.ReviewNew{Rating: 5})
	w2.Body.Close()
	if w2.StatusCode != http.StatusConflict {
		t.Fatalf("second review should conflict: status code %s", w2.Status)
	}

	w2 = vt.createReview(t, b.ID, review.ReviewNew{Rating: 6})
	w2.Body.Close()
	if w2.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("rating above 5 should be rejected: status code %s", w2.Status)
	}

	revs := vt.listReviewsOK(t, b.ID)
	if len(revs) != 1 || revs[0].ID != rev.ID || revs[0].Rating != 4 {
		t.Fatalf("unexpected review list: %+v", revs)
	}

	// The author may update their own review.
	rating := 2
	body, err := json.Marshal(review.ReviewUp{Rating: &rating})
	if err != nil {
		t.Fatal(err)
	}
	r, err := http.NewRequest(http.MethodPut, env.URL+"/reviews/"+rev.ID, bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")
	w2, err = env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	w2.Body.Close()
	if w2.StatusCode != http.StatusOK {
		t.Fatalf("can't update review: status code %s", w2.Status)
	}

	// A stranger may not delete it, an admin may.
	other, err := signupClient(env.Server)
	if err != nil {
		t.Fatal(err)
	}
	r, err = http.NewRequest(http.MethodDelete, env.URL+"/reviews/"+rev.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	w2, err = other.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	w2.Body.Close()
	if w2.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete should be forbidden: status code %s", w2.Status)
	}

	if err := Login(env.Server, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	r, err = http.NewRequest(http.MethodDelete, env.URL+"/reviews/"+rev.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	w2, err = env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	w2.Body.Close()
	if w2.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete failed: status code %s", w2.Status)
	}

	if revs := vt.listReviewsOK(t, b.ID); len(revs) != 0 {
		t.Fatalf("review list should be empty after delete: %+v", revs)
	}
}
