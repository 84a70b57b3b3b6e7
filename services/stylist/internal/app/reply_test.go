package app

import (
	"errors"
	"testing"

	"gauge/pkg/domain"
)

var replyCloset = []domain.ClosetItem{
	{ID: "abc", Type: domain.GarmentJacket, Name: "Navy blazer"},
	{ID: "def", Type: domain.GarmentPants, Name: "Grey chinos"},
}

func TestParseReplyInlineTags(t *testing.T) {
	raw := "Try the navy blazer [ITEM_ID:abc] with grey chinos [ITEM_ID: def ]. The blazer [ITEM_ID:abc] works well."
	reply, err := ParseReply(raw, replyCloset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Try the navy blazer with grey chinos. The blazer works well."
	if reply.Text != want {
		t.Fatalf("text = %q, want %q", reply.Text, want)
	}
	if len(reply.Items) != 2 || reply.Items[0].ID != "abc" || reply.Items[1].ID != "def" {
		t.Fatalf("unexpected items %+v", reply.Items)
	}
}

func TestParseReplyUnknownTag(t *testing.T) {
	reply, err := ParseReply("Wear the scarf [ITEM_ID:ghost] today.", replyCloset)
	if reply.Text != "Wear the scarf today." {
		t.Fatalf("tag not stripped: %q", reply.Text)
	}
	if len(reply.Items) != 0 {
		t.Fatalf("expected no items, got %+v", reply.Items)
	}
	if !errors.Is(err, ErrUnresolvedItems) || errors.Is(err, ErrMalformedReply) {
		t.Fatalf("expected unresolved error only, got %v", err)
	}
	var replyErr *ReplyError
	if !errors.As(err, &replyErr) || len(replyErr.Unresolved) != 1 || replyErr.Unresolved[0] != "ghost" {
		t.Fatalf("unexpected reply error %#v", err)
	}
}

func TestParseReplyStructuredBlocks(t *testing.T) {
	raw := "```json\n" + `{"blocks":[{"type":"text","text":"Go with these."},{"type":"item","itemId":"def"},{"type":"text","text":"Add a belt."}]}` + "\n```"
	reply, err := ParseReply(raw, replyCloset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "Go with these.\n\nAdd a belt." {
		t.Fatalf("text = %q", reply.Text)
	}
	if len(reply.Items) != 1 || reply.Items[0].ID != "def" {
		t.Fatalf("unexpected items %+v", reply.Items)
	}
}

func TestParseReplyMalformedStructuredFallsBack(t *testing.T) {
	raw := `{"blocks":[{"type":"video","text":"x"}]} see [ITEM_ID:abc]`
	reply, err := ParseReply(raw, replyCloset)
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("expected malformed reply error, got %v", err)
	}
	if len(reply.Items) != 1 || reply.Items[0].ID != "abc" {
		t.Fatalf("fallback did not resolve inline tag: %+v", reply.Items)
	}

	_, err = ParseReply(`{"blocks": [`, replyCloset)
	if err != nil {
		t.Fatalf("unterminated braces are plain text, got %v", err)
	}
}

func TestParseReplyPlainText(t *testing.T) {
	reply, err := ParseReply("  Just wear   something comfy!  ", replyCloset)
	if err != nil || reply.Text != "Just wear something comfy!" || reply.Items != nil {
		t.Fatalf("unexpected %+v err=%v", reply, err)
	}
}
