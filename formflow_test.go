package formflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/gateway"
	"github.com/goliatone/go-formflow/pkg/schema"
)

const signupSchema = `
title: Signup
type: object
required: [name, age]
properties:
  name:
    type: string
  age:
    type: integer
  role:
    type: string
    enum: [admin, user, guest]
    default: user
`

const ordersAPI = `
openapi: 3.0.3
info:
  title: Orders
  version: "1.0"
paths:
  /orders:
    post:
      operationId: createOrder
      responses:
        "201":
          description: created
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [customer]
              properties:
                customer:
                  type: string
                quantity:
                  type: integer
    get:
      operationId: listOrders
      responses:
        "200":
          description: ok
`

func TestParseJSONSchemaDocument(t *testing.T) {
	descriptor, err := Parse(context.Background(), "signup", []byte(signupSchema))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := SchemaDescriptor{
		Name:  "signup",
		Title: "Signup",
		Fields: []FieldDescriptor{
			{Name: "name", Kind: schema.KindText, Required: true},
			{Name: "age", Kind: schema.KindInteger, Required: true},
			{Name: "role", Kind: schema.KindEnumerated, Options: []string{"admin", "user", "guest"}, Default: "user"},
		},
	}
	if diff := cmp.Diff(want, descriptor); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOpenAPIPicksSoleBodyOperation(t *testing.T) {
	descriptor, err := Parse(context.Background(), "orders", []byte(ordersAPI))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if descriptor.Name != "createOrder" {
		t.Errorf("descriptor.Name = %q, want createOrder", descriptor.Name)
	}
	if len(descriptor.Fields) != 2 || descriptor.Fields[0].Name != "customer" {
		t.Fatalf("unexpected fields: %+v", descriptor.Fields)
	}
}

func TestParseOpenAPIWithExplicitOperation(t *testing.T) {
	descriptor, err := Parse(context.Background(), "orders", []byte(ordersAPI), WithOperation("createOrder"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if descriptor.Name != "createOrder" {
		t.Errorf("descriptor.Name = %q, want createOrder", descriptor.Name)
	}
}

func TestParseOpenAPIAmbiguousOperation(t *testing.T) {
	doubled := strings.Replace(ordersAPI, "/orders:", "/carts:", 1) + `
  /orders:
    post:
      operationId: createOrderCopy
      responses:
        "201":
          description: created
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                sku:
                  type: string
`
	_, err := Parse(context.Background(), "orders", []byte(doubled))
	if err == nil {
		t.Fatal("Parse() should fail when two operations carry bodies and none is named")
	}
	var parseErr *schema.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error %v is not a ParseError", err)
	}
}

func TestParseRejectsMalformedDocument(t *testing.T) {
	_, err := Parse(context.Background(), "bad", []byte("type: object\nproperties: [not, a, map]\n"))
	if err == nil {
		t.Fatal("Parse() should reject a schema whose properties is not a mapping")
	}
}

func TestFillAndForward(t *testing.T) {
	descriptor, err := Parse(context.Background(), "signup", []byte(signupSchema))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	sess := NewSession(descriptor)

	if diff := cmp.Diff([]string{"name", "age"}, sess.Validate()); diff != "" {
		t.Fatalf("missing fields mismatch (-want +got):\n%s", diff)
	}

	if err := sess.SetField([]string{"name"}, "Ann"); err != nil {
		t.Fatalf("SetField(name) error = %v", err)
	}
	if diff := cmp.Diff([]string{"age"}, sess.Validate()); diff != "" {
		t.Fatalf("missing fields after name (-want +got):\n%s", diff)
	}
	if err := sess.SetField([]string{"age"}, int64(30)); err != nil {
		t.Fatalf("SetField(age) error = %v", err)
	}
	if missing := sess.Validate(); len(missing) != 0 {
		t.Fatalf("Validate() = %v, want none", missing)
	}

	var received map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("upstream got invalid JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id": 7}`)
	}))
	defer upstream.Close()

	envelope, err := gateway.NewForwarder().Forward(context.Background(), gateway.Request{
		URL:  upstream.URL,
		Body: sess.Values(),
	})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}

	if !envelope.Success || envelope.StatusCode != http.StatusCreated {
		t.Fatalf("envelope = %+v, want success with 201", envelope)
	}
	want := map[string]any{"name": "Ann", "age": float64(30), "role": "user"}
	if diff := cmp.Diff(want, received); diff != "" {
		t.Fatalf("forwarded body mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderHTML(t *testing.T) {
	descriptor, err := Parse(context.Background(), "signup", []byte(signupSchema))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	html, err := RenderHTML(context.Background(), descriptor, RenderOptions{Action: "/submit"})
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	out := string(html)
	for _, want := range []string{"<form", `action="/submit"`, `name="name"`, `name="age"`, `name="role"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderUnknownRenderer(t *testing.T) {
	descriptor, err := Parse(context.Background(), "signup", []byte(signupSchema))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := Render(context.Background(), "marble", descriptor, RenderOptions{}); err == nil {
		t.Fatal("Render() should fail for an unregistered renderer")
	}
}
