package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tensorvm/internal/emit"
	"tensorvm/internal/emitcache"
	"tensorvm/internal/modelio"
	"tensorvm/internal/observ"
	"tensorvm/internal/program"
)

var emitCmd = &cobra.Command{
	Use:   "emit [flags] [models...]",
	Short: "Lower models to VM programs",
	Long:  "Lower one or more model files to VM programs. Without arguments the model list comes from tensorvm.toml.",
	RunE:  emitExecution,
}

func init() {
	emitCmd.Flags().Bool("dump-value-names", false, "dump the value-id table with the model's report on stdout")
	emitCmd.Flags().String("out-dir", "", "directory for emitted programs")
	emitCmd.Flags().Bool("no-cache", false, "bypass the emit cache")
}

func emitExecution(cmd *cobra.Command, args []string) error {
	setupColor(cmd)
	quiet, _ := cmd.Flags().GetBool("quiet")
	timings, _ := cmd.Flags().GetBool("timings")
	dumpValueNames, err := cmd.Flags().GetBool("dump-value-names")
	if err != nil {
		return err
	}
	outDir, err := cmd.Flags().GetString("out-dir")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	models := args
	manifest, haveManifest, err := loadManifest(".")
	if err != nil {
		return err
	}
	if haveManifest {
		if len(models) == 0 {
			for _, m := range manifest.Config.Emit.Models {
				models = append(models, filepath.Join(manifest.Root, m))
			}
		}
		if outDir == "" {
			outDir = manifest.Config.Emit.OutDir
		}
		if !cmd.Flags().Changed("dump-value-names") {
			dumpValueNames = manifest.Config.Emit.DumpValueNames
		}
	}
	if len(models) == 0 {
		return fmt.Errorf("no models: pass model files or list them in tensorvm.toml")
	}

	var cache *emitcache.Cache
	if !noCache {
		cache, err = emitcache.OpenDefault("tensorvm")
		if err != nil {
			return fmt.Errorf("open emit cache: %w", err)
		}
	}

	var (
		mu      sync.Mutex
		reports []string
	)
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, model := range models {
		g.Go(func() error {
			report, err := emitOne(model, outDir, dumpValueNames, timings, cache)
			if report != "" {
				mu.Lock()
				reports = append(reports, report)
				mu.Unlock()
			}
			if err != nil {
				return fmt.Errorf("%s: %w", model, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if !quiet {
		for _, r := range reports {
			fmt.Print(r)
		}
	}
	return nil
}

// emitOne lowers a single model file and writes the program next to it (or
// into outDir). The returned report carries the per-model output the caller
// prints once all workers finish, so parallel runs do not interleave.
func emitOne(model, outDir string, dumpValueNames, timings bool, cache *emitcache.Cache) (string, error) {
	var out strings.Builder
	timer := observ.NewTimer()

	ph := timer.Begin("load")
	data, err := os.ReadFile(model)
	if err != nil {
		return "", err
	}
	digest := emitcache.DigestOf(data)

	prog, hit, err := cache.Get(digest)
	if err != nil {
		return "", err
	}
	note := "cached"
	if !hit {
		g, err := modelio.Decode(bytes.NewReader(data))
		if err != nil {
			return "", err
		}
		timer.End(ph, "")

		ph = timer.Begin("emit")
		var diag bytes.Buffer
		prog, err = emit.Emit(g, emit.Options{DumpValueNames: dumpValueNames, Diag: &diag})
		if diag.Len() > 0 {
			fmt.Fprint(&out, diag.String())
		}
		if err != nil {
			return out.String(), err
		}
		note = fmt.Sprintf("%d instructions", prog.Len())
		if err := cache.Put(digest, prog); err != nil {
			return out.String(), err
		}
	}
	timer.End(ph, note)

	ph = timer.Begin("write")
	target := outputName(model, outDir)
	if err := writeProgram(target, prog); err != nil {
		return out.String(), err
	}
	timer.End(ph, target)

	fmt.Fprintf(&out, "%s %s -> %s (%s)\n", color.GreenString("emitted"), model, target, note)
	if timings {
		fmt.Fprint(&out, timer.Summary())
	}
	return out.String(), nil
}

// outputName maps model.tvm to model.tvp, optionally relocated to outDir.
func outputName(model, outDir string) string {
	base := filepath.Base(model)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base += ".tvp"
	if outDir == "" {
		return filepath.Join(filepath.Dir(model), base)
	}
	return filepath.Join(outDir, base)
}

func writeProgram(path string, prog *program.Program) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := prog.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
