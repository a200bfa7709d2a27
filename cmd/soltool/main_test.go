package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/DMA-Software/dma-golso/internal/config"
	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/sol"
)

func writeSOL(t *testing.T, dir, name string, doc *sol.Document) string {
	t.Helper()
	data, err := sol.Encode(doc, sol.Options{})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleDoc() *sol.Document {
	self := amf.NewObject(amf.Member{Name: "score", Value: amf.Integer(42)})
	self.Set("self", self)
	return &sol.Document{
		Header: sol.Header{Name: "game", Version: amf.AMF3},
		Body: []sol.Element{
			{Name: "player", Value: self},
			{Name: "title", Value: amf.String("level one")},
		},
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeSOL(t, dir, "good.sol", sampleDoc())
	bad := filepath.Join(dir, "bad.sol")
	if err := os.WriteFile(bad, []byte("not a sol file"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	ok, err := run(context.Background(), "check", []string{good, bad}, config.Default(), logger, &out)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if ok {
		t.Fatal("check reported success with a broken file")
	}
	if !strings.Contains(out.String(), "OK   "+good+"\n") || !strings.Contains(out.String(), "FAIL "+bad) {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestDump(t *testing.T) {
	path := writeSOL(t, t.TempDir(), "game.sol", sampleDoc())

	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	ok, err := run(context.Background(), "dump", []string{path}, config.Default(), logger, &out)
	if err != nil || !ok {
		t.Fatalf("run = %v, %v", ok, err)
	}

	want := strings.Join([]string{
		"name: game",
		"version: AMF3",
		"player = object #1",
		"  score = integer 42",
		"  self = -> #1",
		`title = string "level one"`,
		"",
	}, "\n")
	if out.String() != want {
		t.Fatalf("dump output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestUnknownCommand(t *testing.T) {
	logger, _ := test.NewNullLogger()
	if _, err := run(context.Background(), "frobnicate", nil, config.Default(), logger, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soltool.yaml")
	if err := os.WriteFile(path, []byte("workers: 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(&Flags{ConfigPath: path, Workers: 2, Flex: true, Verbose: true})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 2 || !cfg.Flex || cfg.LogLevel != "debug" {
		t.Fatalf("config = %+v", cfg)
	}
}
