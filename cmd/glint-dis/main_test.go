package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPackDumpCheckPipeline(t *testing.T) {
	dir := t.TempDir()
	disPath := filepath.Join(dir, "in.dis")
	imgPath := filepath.Join(dir, "out.glintbc")
	outPath := filepath.Join(dir, "out.dis")

	text := `000 literal u32:1
001 store 0
002 load 0
003 literal u32:2
004 add
`
	if err := os.WriteFile(disPath, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runPack([]string{"-o", imgPath, "-name", "one_plus_one", disPath}); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if err := runCheck([]string{imgPath}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := runDump([]string{"-o", outPath, imgPath}); err != nil {
		t.Fatalf("dump: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != text {
		t.Errorf("dump output mismatch:\ngot:\n%s\nwant:\n%s", got, text)
	}
}

func TestPackRejectsBrokenJumps(t *testing.T) {
	dir := t.TempDir()
	disPath := filepath.Join(dir, "in.dis")
	if err := os.WriteFile(disPath, []byte("000 jump_rel +1\n001 pop\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := runPack([]string{"-o", filepath.Join(dir, "out.glintbc"), disPath})
	if err == nil {
		t.Error("packing a jump to a non-dest succeeded")
	}
}

func TestPackRequiresOutput(t *testing.T) {
	dir := t.TempDir()
	disPath := filepath.Join(dir, "in.dis")
	if err := os.WriteFile(disPath, []byte("000 pop\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runPack([]string{disPath}); err == nil {
		t.Error("pack without -o succeeded")
	}
}

func TestDumpRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "bad.glintbc")
	if err := os.WriteFile(imgPath, []byte{0xff, 0x00, 0x13}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runDump([]string{imgPath}); err == nil {
		t.Error("dumping garbage succeeded")
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dis.toml")
	cfg := "[log]\nverbosity = 0\n\n[format]\nsource_locs = true\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	disPath := filepath.Join(dir, "in.dis")
	text := "000 literal u32:1 @ test.x:1:1-1:2\n"
	if err := os.WriteFile(disPath, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	imgPath := filepath.Join(dir, "out.glintbc")
	if err := runPack([]string{"-config", cfgPath, "-o", imgPath, disPath}); err != nil {
		t.Fatalf("pack with config: %v", err)
	}
	if err := runCheck([]string{imgPath}); err != nil {
		t.Fatalf("check: %v", err)
	}
}
