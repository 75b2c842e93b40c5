package main

import (
	"testing"
	"time"

	"github.com/example/whatsapp-messaging/internal/models"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-to", "+14155550100", "-template", "otp_template", "-header", "Daniel", "-body", "Daniel", "-body", "3243"})
	if err != nil {
		t.Fatalf("parseFlags returned error: %v", err)
	}
	if o.template != "otp_template" || o.lang != "en_US" || len(o.bodies) != 2 {
		t.Fatalf("unexpected options %+v", o)
	}

	bad := [][]string{
		{"-text", "hi"},
		{"-to", "1"},
		{"-to", "1", "-text", "hi", "-template", "otp"},
	}
	for _, args := range bad {
		if _, err := parseFlags(args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestBuildRequestTemplate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	req, err := buildRequest(options{
		to:       "+14155550100",
		template: "otp_template",
		lang:     "en_US",
		header:   "Daniel",
		bodies:   listFlag{"Daniel", "3243", "30"},
	}, now)
	if err != nil {
		t.Fatalf("buildRequest returned error: %v", err)
	}
	if req.Type != models.RequestTypeTemplate || req.Text != nil {
		t.Fatalf("unexpected request %+v", req)
	}
	if got := len(req.Template.Components); got != 4 {
		t.Fatalf("expected 4 components, got %d", got)
	}
	if req.MessageID == "" || !req.CreatedAt.Equal(now) {
		t.Fatalf("envelope fields not populated: %+v", req)
	}
}

func TestBuildRequestText(t *testing.T) {
	req, err := buildRequest(options{to: "14155550100", text: "hello"}, time.Now())
	if err != nil {
		t.Fatalf("buildRequest returned error: %v", err)
	}
	if req.Type != models.RequestTypeText || req.Text.Body != "hello" || req.Template != nil {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestBuildRequestRejectsBadLanguage(t *testing.T) {
	if _, err := buildRequest(options{to: "1", template: "otp", lang: "english"}, time.Now()); err == nil {
		t.Fatalf("expected invalid language error")
	}
}
