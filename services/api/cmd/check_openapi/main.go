package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"arview/services/api/internal/server"
)

type openAPIDoc struct {
	Paths      map[string]map[string]yaml.Node `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

// Go wildcard suffixes ({key...}) have no OpenAPI equivalent.
var wildcardSuffix = regexp.MustCompile(`\{([^}]+)\.\.\.\}`)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if err := check(doc, server.Routes()); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func check(doc openAPIDoc, routes []string) error {
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errResp); err != nil {
		return err
	}
	fieldErr, err := getSchema(doc, "FieldError")
	if err != nil {
		return err
	}
	if err := validateFieldError(fieldErr); err != nil {
		return err
	}
	return compareOperations(documentedOperations(doc), servedOperations(routes))
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"error", "code"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	for _, field := range []string{"error", "code", "requestId"} {
		if prop, ok := s.Properties[field]; !ok || prop.Type != "string" {
			return fmt.Errorf("ErrorResponse.%s must be string", field)
		}
	}
	fields, ok := s.Properties["fields"]
	if !ok || fields.Type != "array" {
		return errors.New("ErrorResponse.fields must be array")
	}
	if fields.Items == nil || strings.TrimSpace(fields.Items.Ref) != "#/components/schemas/FieldError" {
		return errors.New("ErrorResponse.fields.items must reference FieldError")
	}
	return nil
}

func validateFieldError(s schema) error {
	if s.Type != "object" {
		return errors.New("FieldError must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"field", "message"} {
		if !required[field] {
			return fmt.Errorf("FieldError.required must include %q", field)
		}
		if prop, ok := s.Properties[field]; !ok || prop.Type != "string" {
			return fmt.Errorf("FieldError.%s must be string", field)
		}
	}
	return nil
}

func documentedOperations(doc openAPIDoc) []string {
	var out []string
	for path, item := range doc.Paths {
		for method := range item {
			if httpMethods[strings.ToLower(method)] {
				out = append(out, strings.ToUpper(method)+" "+path)
			}
		}
	}
	sort.Strings(out)
	return out
}

func servedOperations(routes []string) []string {
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, wildcardSuffix.ReplaceAllString(r, "{$1}"))
	}
	sort.Strings(out)
	return out
}

func compareOperations(documented, served []string) error {
	doc := makeSet(documented)
	srv := makeSet(served)
	var missing, extra []string
	for _, op := range served {
		if !doc[op] {
			missing = append(missing, op)
		}
	}
	for _, op := range documented {
		if !srv[op] {
			extra = append(extra, op)
		}
	}
	switch {
	case len(missing) > 0:
		return fmt.Errorf("routes missing from openapi: %s", strings.Join(missing, ", "))
	case len(extra) > 0:
		return fmt.Errorf("openapi documents unserved operations: %s", strings.Join(extra, ", "))
	}
	return nil
}

func makeSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[strings.TrimSpace(v)] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "OpenAPI consistency check failed: %v\n", err)
	os.Exit(1)
}
