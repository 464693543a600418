package contacts

import (
	"context"
	"errors"
	"testing"

	"notifyd/internal/pipeline"
)

func TestDirectoryFindByRef(t *testing.T) {
	t.Parallel()
	d := NewDirectory([]Contact{
		{Ref: "pt-1", Name: "Pat", Email: "pat@example.com"},
		{Ref: "pt-2", Name: "Sam", Phone: "+15551234567"},
	})

	v, err := d.FindByRef(context.Background(), "pt-1")
	if err != nil {
		t.Fatalf("FindByRef error: %v", err)
	}
	c, ok := v.(*Contact)
	if !ok || c.Name != "Pat" {
		t.Fatalf("resolved = %#v", v)
	}

	_, err = d.FindByRef(context.Background(), "nobody")
	if !errors.Is(err, pipeline.ErrRecipientNotFound) {
		t.Fatalf("err = %v, want ErrRecipientNotFound", err)
	}
}

func TestDirectoryReplace(t *testing.T) {
	t.Parallel()
	d := NewDirectory([]Contact{{Ref: "pt-1", Name: "Pat"}})
	d.Replace([]Contact{{Ref: "pt-2", Name: "Sam"}})

	if _, err := d.FindByRef(context.Background(), "pt-1"); err == nil {
		t.Fatal("replaced contact must no longer resolve")
	}
	if _, err := d.FindByRef(context.Background(), "pt-2"); err != nil {
		t.Fatalf("new contact must resolve: %v", err)
	}
}
