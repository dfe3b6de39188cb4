// ABOUTME: Tests for the in-process change event broker.
// ABOUTME: Covers table filtering, idempotent unsubscribe, overflow cut-off, and close.
package storage

import (
	"strconv"
	"testing"

	"github.com/2389-research/laulau/internal/models"
)

func TestBrokerFiltersByTable(t *testing.T) {
	b := NewBroker()
	posts, cancelPosts := b.Subscribe(models.TablePosts)
	defer cancelPosts()
	all, cancelAll := b.Subscribe()
	defer cancelAll()

	b.Publish(models.ChangeEvent{Table: models.TableComments, Kind: models.EventInsert, Comment: &models.Comment{ID: "c"}})

	select {
	case ev := <-posts:
		t.Errorf("posts subscriber got comment event: %+v", ev)
	default:
	}
	ev := receive(t, all)
	if ev.Comment == nil || ev.Comment.ID != "c" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestBrokerUnsubscribeIdempotent(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	if b.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.Len())
	}
	cancel()
	cancel()
	if b.Len() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.Len())
	}
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(models.ChangeEvent{Table: models.TablePosts})
}

func TestBrokerOverflowEndsFeedInsteadOfSkipping(t *testing.T) {
	b := NewBroker()
	var overflowed []models.Table
	b.OnOverflow = func(table models.Table) { overflowed = append(overflowed, table) }
	ch, cancel := b.Subscribe()
	defer cancel()

	const published = subscriberBuffer + 36
	for i := 0; i < published; i++ {
		b.Publish(models.ChangeEvent{Table: models.TablePosts, Kind: models.EventInsert, Post: &models.Post{ID: strconv.Itoa(i)}})
	}

	// Every buffered event arrives in order, then the channel closes: the
	// subscriber learns it fell behind rather than missing events unnoticed.
	received := 0
	for ev := range ch {
		if ev.Post.ID != strconv.Itoa(received) {
			t.Fatalf("event %d out of order: got post %s", received, ev.Post.ID)
		}
		received++
	}
	if received != subscriberBuffer {
		t.Errorf("expected %d buffered events before the cut-off, got %d", subscriberBuffer, received)
	}
	if len(overflowed) != 1 || overflowed[0] != models.TablePosts {
		t.Errorf("expected one overflow on posts, got %v", overflowed)
	}
	if b.Len() != 0 {
		t.Errorf("expected overflowed subscriber to be removed, got %d", b.Len())
	}

	// A fresh subscription receives new events normally.
	again, cancelAgain := b.Subscribe()
	defer cancelAgain()
	b.Publish(models.ChangeEvent{Table: models.TablePosts, Kind: models.EventInsert, Post: &models.Post{ID: "after"}})
	if ev := receive(t, again); ev.Post.ID != "after" {
		t.Errorf("unexpected event after resubscribe: %+v", ev)
	}
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	b.Close()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after broker close")
	}

	if !b.Closed() {
		t.Error("expected Closed after Close")
	}

	late, _ := b.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected closed channel for subscription after close")
	}
}
