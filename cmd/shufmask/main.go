package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/xgo-dev/shufmask"
	"golang.org/x/tools/go/packages"
)

type goListPackage struct {
	Dir        string   `json:"Dir"`
	ImportPath string   `json:"ImportPath"`
	SFiles     []string `json:"SFiles"`
}

type siteInfo struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Source     string `json:"source"`
	Op         string `json:"op"`
	Type       string `json:"type"`
	Mask       []int  `json:"mask,omitempty"`
	NotShuffle bool   `json:"not_shuffle,omitempty"`
	Feature    string `json:"feature"`
	Host       bool   `json:"host"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "-h", "--help", "help":
		usage()
	case "decode":
		check(runDecode(os.Args[2:]))
	case "list":
		check(runList(os.Args[2:]))
	case "scan":
		check(runScan(os.Args[2:]))
	case "ops":
		runOps()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  shufmask decode -op <op> [-type '<8 x i32>' | -bits 256] [-imm 0x1b | -ctl 0x03,0x02,...] [-ll [-direct|-verify]] [-triple t]")
	fmt.Fprintln(os.Stderr, "  shufmask list [-goos <goos>] [-goarch <goarch>] [-j N] [-all] [<pkg-or-path>]")
	fmt.Fprintln(os.Stderr, "  shufmask scan (-pkg <pattern> | -i <file.s>) [-goos <goos>] [-goarch amd64] [-j N] [-json <out>]")
	fmt.Fprintln(os.Stderr, "  shufmask ops")
}

func runOps() {
	for _, name := range shufmask.Ops() {
		o, _ := shufmask.Lookup(name)
		width := "reg"
		if o.Bits != 0 {
			width = strconv.Itoa(o.Bits)
		}
		feat := string(o.Feature)
		if o.Wide != "" {
			feat += "/" + string(o.Wide)
		}
		fmt.Printf("%-12s %-10s i%-3d %-4s %s\n", name, o.Family, o.ElemBits, width, feat)
	}
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		op     string
		typ    string
		bits   int
		imm    string
		ctl    string
		emitLL bool
		direct bool
		verify bool
		triple string
	)
	fs.StringVar(&op, "op", "", "shuffle mnemonic (Plan 9 or Intel spelling)")
	fs.StringVar(&typ, "type", "", "operand vector type, e.g. '<8 x i32>'")
	fs.IntVar(&bits, "bits", 0, "register width in bits (64/128/256) when -type is not given")
	fs.StringVar(&imm, "imm", "0", "8-bit immediate")
	fs.StringVar(&ctl, "ctl", "", "comma separated PSHUFB control bytes")
	fs.BoolVar(&emitLL, "ll", false, "print an LLVM IR function instead of the mask")
	fs.BoolVar(&direct, "direct", false, "with -ll, build the function through the LLVM API")
	fs.BoolVar(&verify, "verify", false, "with -ll, parse and verify the textual IR before printing")
	fs.StringVar(&triple, "triple", "", "target triple for -ll output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(fs.Args()) != 0 {
		return fmt.Errorf("unexpected positional args: %s", strings.Join(fs.Args(), " "))
	}
	o, ok := shufmask.Lookup(op)
	if !ok {
		return fmt.Errorf("%w: %q", shufmask.ErrUnknownOp, op)
	}

	var r shufmask.Result
	if o.Family == shufmask.FamPSHUFB {
		b, err := parseBytes(ctl)
		if err != nil {
			return err
		}
		if r, err = shufmask.DecodeControl(o.Name, b); err != nil {
			return err
		}
	} else {
		vt, err := decodeVT(o, typ, bits)
		if err != nil {
			return err
		}
		v, err := strconv.ParseUint(imm, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid -imm %q: %w", imm, err)
		}
		if r, err = shufmask.Decode(o.Name, vt, uint8(v)); err != nil {
			return err
		}
	}

	if r.NotShuffle {
		fmt.Printf("%s %s: not a shuffle\n", o.Name, r.VT)
		return nil
	}
	if emitLL {
		name := strings.ToLower(o.Name)
		switch {
		case direct:
			mod, err := shufmask.ShuffleModule(triple, name, r.VT, r.Mask)
			if err != nil {
				return err
			}
			defer mod.Dispose()
			_, err = os.Stdout.WriteString(mod.String())
			return err
		case verify:
			mod, err := shufmask.FuncModule(triple, name, r.VT, r.Mask)
			if err != nil {
				return err
			}
			mod.Dispose()
		}
		fn, err := shufmask.FuncIR(name, r.VT, r.Mask)
		if err != nil {
			return err
		}
		_, err = os.Stdout.WriteString(shufmask.ModuleIR(triple, fn))
		return err
	}
	fmt.Printf("%s %s %s\n", o.Name, r.VT, r.Mask)
	return nil
}

func decodeVT(o shufmask.OpInfo, typ string, bits int) (shufmask.VT, error) {
	if strings.TrimSpace(typ) != "" {
		return shufmask.ParseVT(typ)
	}
	if bits == 0 && o.Bits == 0 {
		bits = 128
	}
	return o.VTFor(bits)
}

func parseBytes(s string) ([]byte, error) {
	parts := splitCSV(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("missing -ctl bytes")
	}
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid control byte %q: %w", p, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		goos   string
		goarch string
		jobs   int
		all    bool
	)
	fs.StringVar(&goos, "goos", runtime.GOOS, "target GOOS")
	fs.StringVar(&goarch, "goarch", "amd64", "target GOARCH (amd64/386)")
	fs.IntVar(&jobs, "j", runtime.GOMAXPROCS(0), "files scanned in parallel")
	fs.BoolVar(&all, "all", false, "also list .s files without decodable shuffles")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkGoarch(goarch); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) > 1 {
		return fmt.Errorf("list accepts at most one argument: <pkg or path>")
	}
	query := "std"
	if len(rest) == 1 {
		query = strings.TrimSpace(rest[0])
		if query == "" {
			return fmt.Errorf("empty <pkg or path>")
		}
	}

	pkgs, err := goListPackages(query, goos, goarch)
	if err != nil {
		return err
	}
	var files []string
	for _, p := range pkgs {
		files = append(files, p.asmFiles()...)
	}
	results, err := shufmask.ScanFiles(context.Background(), files, jobs)
	if err != nil {
		return err
	}
	byPath := make(map[string][]shufmask.Site, len(results))
	for _, fr := range results {
		byPath[fr.Path] = fr.Sites
	}

	var total, shown int
	for _, p := range pkgs {
		printed := false
		for _, f := range p.asmFiles() {
			sites := byPath[f]
			if len(sites) == 0 && !all {
				continue
			}
			if !printed {
				if shown != 0 {
					fmt.Println()
				}
				fmt.Println(p.ImportPath)
				printed = true
				shown++
			}
			total += len(sites)
			fmt.Printf("  %s\t%d\t%s\n", f, len(sites), strings.Join(siteOps(sites), " "))
		}
	}
	fmt.Fprintf(os.Stderr, "%d shuffle sites in %d packages (%d .s files scanned)\n", total, shown, len(files))
	return nil
}

// siteOps returns the distinct mnemonics of sites in sorted order.
func siteOps(sites []shufmask.Site) []string {
	seen := map[string]bool{}
	var ops []string
	for _, s := range sites {
		if name := s.Result.Op.Name; !seen[name] {
			seen[name] = true
			ops = append(ops, name)
		}
	}
	sort.Strings(ops)
	return ops
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		pkgPattern string
		inFile     string
		goos       string
		goarch     string
		jobs       int
		jsonOut    string
	)
	fs.StringVar(&pkgPattern, "pkg", "", "comma separated package patterns")
	fs.StringVar(&inFile, "i", "", "single Plan 9 asm .s file")
	fs.StringVar(&goos, "goos", runtime.GOOS, "target GOOS")
	fs.StringVar(&goarch, "goarch", "amd64", "target GOARCH (amd64/386)")
	fs.IntVar(&jobs, "j", runtime.GOMAXPROCS(0), "files scanned in parallel")
	fs.StringVar(&jsonOut, "json", "", "optional output json path ('-' for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkGoarch(goarch); err != nil {
		return err
	}
	if len(fs.Args()) != 0 {
		return fmt.Errorf("unexpected positional args: %s", strings.Join(fs.Args(), " "))
	}

	pkgMode := strings.TrimSpace(pkgPattern) != ""
	fileMode := strings.TrimSpace(inFile) != ""
	var files []string
	switch {
	case pkgMode && fileMode:
		return fmt.Errorf("-pkg and -i are mutually exclusive")
	case pkgMode:
		pkgs, err := loadPkgs(goos, goarch, splitCSV(pkgPattern))
		if err != nil {
			return err
		}
		files = collectAsmFiles(pkgs)
		if len(files) == 0 {
			return fmt.Errorf("no .s files selected for GOOS=%s GOARCH=%s", goos, goarch)
		}
	case fileMode:
		p, err := asmFile(inFile)
		if err != nil {
			return err
		}
		files = []string{p}
	default:
		return fmt.Errorf("missing mode: use -pkg <pattern> or -i <file.s>")
	}

	results, err := shufmask.ScanFiles(context.Background(), files, jobs)
	if err != nil {
		return err
	}

	var infos []siteInfo
	for _, fr := range results {
		for _, s := range fr.Sites {
			r := s.Result
			feat := r.Op.FeatureFor(r.VT.SizeInBits())
			info := siteInfo{
				File:       fr.Path,
				Line:       s.Line,
				Source:     s.Instr.Raw,
				Op:         r.Op.Name,
				Type:       r.VT.String(),
				NotShuffle: r.NotShuffle,
				Feature:    string(feat),
				Host:       shufmask.HostSupports(feat),
			}
			if !r.NotShuffle {
				info.Mask = r.Mask.Ints()
			}
			infos = append(infos, info)
		}
	}

	if jsonOut != "" {
		if err := writeReport(jsonOut, infos); err != nil {
			return err
		}
		if jsonOut != "-" {
			fmt.Fprintf(os.Stderr, "wrote %d sites: %s\n", len(infos), jsonOut)
		}
		return nil
	}
	for _, fr := range results {
		for _, s := range fr.Sites {
			r := s.Result
			mask := "not a shuffle"
			if !r.NotShuffle {
				mask = r.Mask.String()
			}
			feat := r.Op.FeatureFor(r.VT.SizeInBits())
			host := "no"
			if shufmask.HostSupports(feat) {
				host = "yes"
			}
			fmt.Printf("%s:%d\t%s\t%s\t%s\t%s(host=%s)\n", fr.Path, s.Line, r.Op.Name, r.VT, mask, feat, host)
		}
	}
	return nil
}

func checkGoarch(goarch string) error {
	switch goarch {
	case "amd64", "386":
		return nil
	}
	return fmt.Errorf("unsupported -goarch %q (expect amd64/386)", goarch)
}

func loadPkgs(goos, goarch string, patterns []string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles,
		Env: append(os.Environ(),
			"GOOS="+goos,
			"GOARCH="+goarch,
		),
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, err
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("errors loading %s", strings.Join(patterns, ", "))
	}
	return pkgs, nil
}

func collectAsmFiles(pkgs []*packages.Package) []string {
	seen := map[string]bool{}
	var files []string
	for _, p := range pkgs {
		if p == nil || seen[p.PkgPath] {
			continue
		}
		seen[p.PkgPath] = true
		for _, f := range p.OtherFiles {
			if filepath.Ext(f) == ".s" {
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}

// asmFile returns path as an absolute regular file.
func asmFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	switch fi, err := os.Stat(abs); {
	case err != nil:
		return "", err
	case !fi.Mode().IsRegular():
		return "", fmt.Errorf("not a regular file: %s", abs)
	}
	return abs, nil
}

// goListPackages runs "go list -json" for query and returns the packages that
// carry assembly, sorted by import path.
func goListPackages(query, goos, goarch string) ([]goListPackage, error) {
	var stderr bytes.Buffer
	cmd := exec.Command("go", "list", "-json", query)
	cmd.Env = append(os.Environ(), "GOOS="+goos, "GOARCH="+goarch)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("go list %s: %w\n%s", query, err, msg)
		}
		return nil, fmt.Errorf("go list %s: %w", query, err)
	}

	var pkgs []goListPackage
	dec := json.NewDecoder(bytes.NewReader(out))
	for dec.More() {
		var p goListPackage
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode go list output for %q: %w", query, err)
		}
		if p.ImportPath != "" && len(p.SFiles) != 0 {
			pkgs = append(pkgs, p)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ImportPath < pkgs[j].ImportPath })
	return pkgs, nil
}

// asmFiles returns the package's .s files as sorted absolute paths.
func (p goListPackage) asmFiles() []string {
	files := make([]string, 0, len(p.SFiles))
	for _, f := range p.SFiles {
		if !filepath.IsAbs(f) {
			if p.Dir == "" {
				continue
			}
			f = filepath.Join(p.Dir, f)
		}
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// writeReport writes v as indented JSON to path, or to stdout for "-".
func writeReport(path string, v any) error {
	if path == "-" {
		return encodeReport(os.Stdout, v)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeReport(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeReport(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func check(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
