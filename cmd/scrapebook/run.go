package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrapebook/internal/browser"
	"github.com/nao1215/scrapebook/internal/config"
	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/model"
	"github.com/nao1215/scrapebook/internal/pipeline"
	"github.com/nao1215/scrapebook/internal/recipe"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <recipe>...",
		Short: "Run scripted browser sessions (recipes)",
		Long: `Run replays recipes: scripted browser sessions that type, click, wait,
sleep, take screenshots and read elements, then optionally collect a
repeated listing (e.g. search results) into a table.

A recipe is either the name of an entry under "recipes:" in the
configuration file or the path of a YAML file holding a single recipe.
Run "scrapebook init" for a commented example.

The engine comes from --engine when given, otherwise from the recipe,
otherwise the default (rod).

Examples:
  # List the recipes of the configuration file
  scrapebook run --list

  # Search products and tabulate name and price
  scrapebook run sdcards

  # Run a recipe file with playwright and save the listing
  scrapebook run --engine playwright --db shop.db search.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	addBrowserFlags(cmd)
	addExtractFlags(cmd, 0)
	cmd.Flags().BoolP("list", "l", false,
		"List the recipes of the configuration file and exit")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if list {
		return listRecipes(cmd, cfg.Format, cfg.SiteConfigs)
	}

	recipes := make([]*recipe.Recipe, 0, len(args))
	for _, arg := range args {
		rc, err := resolveRecipe(cfg.SiteConfigs, arg)
		if err != nil {
			return err
		}
		recipes = append(recipes, rc)
	}

	// Recipe URLs may be file:// URLs, which Validate rejects.
	cfg.Targets = make([]string, len(recipes))
	for i, rc := range recipes {
		cfg.Targets[i] = rc.URL
	}
	if len(recipes) == 0 {
		err = config.ErrNoTarget
	} else {
		err = cfg.ValidateSettings()
	}
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	extract, err := extractSteps(cmd)
	if err != nil {
		return err
	}
	engineFlag := ""
	if cmd.Flags().Changed("engine") {
		engineFlag = cfg.Engine
	}

	logger := setupLogger(cmd, cfg.Verbose)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	browsers := newBrowserPool(cfg, logger)
	defer browsers.Close()

	runner := recipe.NewRunner(
		recipe.WithLogger(logger),
		recipe.WithScreenshotDir(cfg.ScreenshotDir),
		recipe.WithWaitTimeout(cfg.Timeout),
	)

	results := make([]*model.Result, 0, len(recipes))
	for _, rc := range recipes {
		engine := recipeEngine(engineFlag, rc.Engine, cfg.Engine)
		logger.Info("running recipe", "recipe", rc.Name, "engine", engine, "url", rc.URL)

		b, err := browsers.Get(ctx, engine)
		if err != nil {
			result := model.NewResult(rc.URL)
			result.Engine = engine
			result.Fail(err)
			result.Finish()
			results = append(results, result)
			continue
		}

		step := pipeline.NewRecipeStep(b, engine, rc, runner,
			pipeline.WithRecipeViewport(cfg.Width, cfg.Height),
			pipeline.WithRecipeLogger(logger),
		)
		results = append(results, runOne(ctx, newPagePipeline(logger, step, extract()), rc.URL))
	}

	fallback := "run"
	if len(recipes) == 1 {
		fallback = recipes[0].Name
	}
	prefix, err := exportPrefix(cmd, fallback)
	if err != nil {
		return err
	}
	if err := finish(ctx, cmd, cfg, prefix, results, logger); err != nil {
		return err
	}
	return ctx.Err()
}

// resolveRecipe finds a recipe by file path or by name in the config file.
func resolveRecipe(file *config.File, arg string) (*recipe.Recipe, error) {
	if isRecipeFile(arg) {
		rc, err := recipe.LoadFile(arg)
		if err != nil {
			return nil, err
		}
		if rc.Name == "" {
			rc.Name = strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		}
		if err := rc.Validate(); err != nil {
			return nil, fmt.Errorf("recipe %s: %w", arg, err)
		}
		return rc, nil
	}

	if file == nil {
		file = &config.File{}
	}
	return file.Recipe(arg)
}

// isRecipeFile reports whether arg names an existing YAML file.
func isRecipeFile(arg string) bool {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yaml", ".yml":
	default:
		return false
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

// recipeEngine picks the engine: flag, then recipe, then default.
func recipeEngine(flag, fromRecipe, fallback string) string {
	switch {
	case flag != "":
		return flag
	case fromRecipe != "":
		return fromRecipe
	default:
		return fallback
	}
}

// listRecipes prints the recipes of the configuration file as a table.
func listRecipes(cmd *cobra.Command, format config.Format, file *config.File) error {
	out := cmd.OutOrStdout()
	if file == nil || len(file.Recipes) == 0 {
		fmt.Fprintln(out, "No recipes configured. Run \"scrapebook init\" for an example.")
		return nil
	}

	rows := make([][]string, 0, len(file.Recipes))
	for _, name := range file.RecipeNames() {
		rc := file.Recipes[name]
		extract := ""
		if rc.Extract != nil {
			extract = strconv.Itoa(len(rc.Extract.Fields)) + " fields"
		}
		rows = append(rows, []string{name, rc.URL, rc.Engine, strconv.Itoa(len(rc.Steps)), extract})
	}
	f := frame.New("recipes", []string{"name", "url", "engine", "steps", "extract"}, rows)
	return renderFrame(out, format, f)
}

// browserPool opens one browser per engine on first use.
type browserPool struct {
	cfg      *config.Config
	logger   *slog.Logger
	browsers map[string]browser.Browser
}

func newBrowserPool(cfg *config.Config, logger *slog.Logger) *browserPool {
	return &browserPool{
		cfg:      cfg,
		logger:   logger,
		browsers: make(map[string]browser.Browser),
	}
}

// Get returns the browser for engine, opening it if needed.
func (p *browserPool) Get(ctx context.Context, engine string) (browser.Browser, error) {
	if b, ok := p.browsers[engine]; ok {
		return b, nil
	}
	opts := p.cfg.BrowserOptions(engine)
	opts.Logger = p.logger
	b, err := openBrowser(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s browser: %w", engine, err)
	}
	p.browsers[engine] = b
	return b, nil
}

// Close closes every opened browser.
func (p *browserPool) Close() {
	for _, b := range p.browsers {
		closeBrowser(b, p.logger)
	}
}
