package caching

import (
	"net/http"
	"testing"
	"time"
)

func TestOptionsValidate(t *testing.T) {
	var nilOpts *Options
	if err := nilOpts.Validate(); err != nil {
		t.Errorf("Validate() on nil = %v, want nil", err)
	}

	valid := &Options{TTL: time.Minute, KeyTemplate: "{tenant}:{hash}"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v for valid options", err)
	}

	negative := &Options{TTL: -time.Second}
	if err := negative.Validate(); err == nil {
		t.Error("Validate() accepted a negative TTL")
	}
}

func TestResolveOptionsNil(t *testing.T) {
	got := ResolveOptions(nil, 5*time.Minute)

	if got.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want the default", got.TTL)
	}
	if got.KeyTemplate != "" || got.Tags != nil || got.Headers != nil {
		t.Errorf("ResolveOptions(nil) = %+v, want bare defaults", got)
	}
}

func TestResolveOptionsTTLInheritance(t *testing.T) {
	inherited := ResolveOptions(&Options{}, 5*time.Minute)
	if inherited.TTL != 5*time.Minute {
		t.Errorf("zero TTL resolved to %v, want the default", inherited.TTL)
	}

	explicit := ResolveOptions(&Options{TTL: time.Second}, 5*time.Minute)
	if explicit.TTL != time.Second {
		t.Errorf("explicit TTL resolved to %v, want 1s", explicit.TTL)
	}
}

func TestResolveOptionsPreservesFields(t *testing.T) {
	headers := http.Header{}
	opts := &Options{
		KeyTemplate: "books:{tenant}:{hash}",
		Tags:        TagList{"books"},
		Headers:     headers,
	}

	got := ResolveOptions(opts, 0)

	if got.KeyTemplate != opts.KeyTemplate {
		t.Errorf("KeyTemplate = %q, want %q", got.KeyTemplate, opts.KeyTemplate)
	}
	if got.Headers == nil {
		t.Error("Headers dropped during resolution")
	}
	tags := NewTagResolver().Resolve(got.Tags, "payload", RequestContext{})
	if len(tags) != 1 || tags[0] != "books" {
		t.Errorf("Tags resolved to %v, want [books]", tags)
	}
}

func TestResolveOptionsDoesNotMutateInput(t *testing.T) {
	opts := &Options{}
	ResolveOptions(opts, time.Minute)

	if opts.TTL != 0 {
		t.Errorf("input options mutated: TTL = %v", opts.TTL)
	}
}
