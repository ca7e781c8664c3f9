// Package cli provides the command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/promptree/promptree/internal/assemble"
	"github.com/promptree/promptree/internal/cache"
	"github.com/promptree/promptree/internal/config"
	"github.com/promptree/promptree/internal/ignore"
	"github.com/promptree/promptree/internal/scan"
	"github.com/promptree/promptree/internal/selection"
	"github.com/promptree/promptree/internal/services/clipboard"
	"github.com/promptree/promptree/internal/tokenizer"
	"github.com/promptree/promptree/internal/types"
	"github.com/promptree/promptree/internal/utils"
)

const (
	exclusionFlagName        = "e"
	noDefaultIgnoresFlagName = "no-default-ignores"
	maxFileSizeFlagName      = "max-file-size"
	concurrencyFlagName      = "concurrency"
	symlinksFlagName         = "symlinks"
	selectFlagName           = "select"
	deselectFlagName         = "deselect"
	lineCountsFlagName       = "line-counts"
	summariesFlagName        = "summaries"
	showOmittedFlagName      = "show-omitted"
	tokensFlagName           = "tokens"
	modelFlagName            = "model"
	copyFlagName             = "copy"
	summaryFlagName          = "summary"
	progressFlagName         = "progress"
	configFlagName           = "config"
	versionFlagName          = "version"
	versionTemplate          = "promptree version: %s\n"
	defaultPath              = "."
	rootUse                  = "promptree"
	rootShortDescription     = "promptree command line interface"
	rootLongDescription      = `promptree packages a directory tree into an annotated, LLM-ready document.
It scans a folder concurrently, lets patterns include or exclude files, and
assembles a directory tree plus fenced file contents on stdout.`
	versionFlagDescription = "display application version"
	packUse                = "pack [path]"
	treeUse                = "tree [path]"
	packAlias              = "p"
	treeAlias              = "t"
	packShortDescription   = "assemble tree and file contents (" + packAlias + ")"
	treeShortDescription   = "assemble the tree section only (" + treeAlias + ")"

	// packLongDescription provides detailed help for the pack command.
	packLongDescription = `Scan a directory and print the assembled document.
Use --select and --deselect to restrict which files contribute content.`
	// packUsageExample demonstrates pack command usage.
	packUsageExample = `  # Package the current directory
  promptree pack

  # Exclude vendored code and count tokens for gpt-4o
  promptree pack -e vendor/ --tokens .`

	// treeLongDescription provides detailed help for the tree command.
	treeLongDescription = `Scan a directory and print only the annotated tree section.`
	// treeUsageExample demonstrates tree command usage.
	treeUsageExample = `  # Show the annotated tree with line counts
  promptree tree --line-counts ./cmd`

	exclusionFlagDescription        = "exclude path pattern"
	noDefaultIgnoresFlagDescription = "do not apply the built-in ignore patterns"
	maxFileSizeFlagDescription      = "per-file size ceiling in bytes"
	concurrencyFlagDescription      = "number of concurrent scan workers"
	symlinksFlagDescription         = "record symbolic links as non-traversed leaves"
	selectFlagDescription           = "select only files matching pattern"
	deselectFlagDescription         = "deselect files matching pattern"
	lineCountsFlagDescription       = "annotate files with line counts"
	summariesFlagDescription        = "annotate directories with descendant file counts"
	showOmittedFlagDescription      = "list deselected entries with a content omitted note"
	tokensFlagDescription           = "count tokens of the assembled output"
	modelFlagDescription            = "tokenizer model to use for token counting"
	copyFlagDescription             = "copy assembled output to the system clipboard"
	summaryFlagDescription          = "log a summary line after assembly"
	progressFlagDescription         = "log scan progress"
	configFlagDescription           = "path to a configuration file"

	scanCancelledMessage        = "scan cancelled"
	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	progressLogInterval         = 500
)

// Execute runs the promptree application.
func Execute() error {
	rootCommand := createRootCommand()
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand() *cobra.Command {
	var showVersion bool

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}
	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.AddCommand(
		createPackCommand(),
		createTreeCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// commandOptions stores every flag value shared by the pack and tree commands.
type commandOptions struct {
	exclusionPatterns  []string
	noDefaultIgnores   bool
	maxFileSizeBytes   int64
	concurrency        int
	includeSymlinks    bool
	selectPatterns     []string
	deselectPatterns   []string
	includeLineCounts  bool
	directorySummaries bool
	showOmitted        bool
	countTokens        bool
	tokenizerModel     string
	copyToClipboard    bool
	logSummary         bool
	logProgress        bool
	configFilePath     string
}

// addCommonFlags registers the shared flag set on the command.
func addCommonFlags(command *cobra.Command, options *commandOptions) {
	command.Flags().StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	command.Flags().BoolVar(&options.noDefaultIgnores, noDefaultIgnoresFlagName, false, noDefaultIgnoresFlagDescription)
	command.Flags().Int64Var(&options.maxFileSizeBytes, maxFileSizeFlagName, 0, maxFileSizeFlagDescription)
	command.Flags().IntVar(&options.concurrency, concurrencyFlagName, 0, concurrencyFlagDescription)
	command.Flags().BoolVar(&options.includeSymlinks, symlinksFlagName, false, symlinksFlagDescription)
	command.Flags().BoolVar(&options.includeLineCounts, lineCountsFlagName, true, lineCountsFlagDescription)
	command.Flags().BoolVar(&options.directorySummaries, summariesFlagName, false, summariesFlagDescription)
	command.Flags().BoolVar(&options.logProgress, progressFlagName, false, progressFlagDescription)
	command.Flags().StringVar(&options.configFilePath, configFlagName, "", configFlagDescription)
}

// createPackCommand builds the pack subcommand.
func createPackCommand() *cobra.Command {
	options := &commandOptions{}
	packCommand := &cobra.Command{
		Use:     packUse,
		Aliases: []string{packAlias},
		Short:   packShortDescription,
		Long:    packLongDescription,
		Example: packUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAssembly(command, arguments, options, false)
		},
	}
	addCommonFlags(packCommand, options)
	packCommand.Flags().StringArrayVar(&options.selectPatterns, selectFlagName, nil, selectFlagDescription)
	packCommand.Flags().StringArrayVar(&options.deselectPatterns, deselectFlagName, nil, deselectFlagDescription)
	packCommand.Flags().BoolVar(&options.showOmitted, showOmittedFlagName, false, showOmittedFlagDescription)
	packCommand.Flags().BoolVar(&options.countTokens, tokensFlagName, false, tokensFlagDescription)
	packCommand.Flags().StringVar(&options.tokenizerModel, modelFlagName, "", modelFlagDescription)
	packCommand.Flags().BoolVar(&options.copyToClipboard, copyFlagName, false, copyFlagDescription)
	packCommand.Flags().BoolVar(&options.logSummary, summaryFlagName, false, summaryFlagDescription)
	return packCommand
}

// createTreeCommand builds the tree subcommand.
func createTreeCommand() *cobra.Command {
	options := &commandOptions{}
	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runAssembly(command, arguments, options, true)
		},
	}
	addCommonFlags(treeCommand, options)
	return treeCommand
}

// runAssembly performs the scan, applies selection patterns, assembles the
// document, and handles the optional token count, summary, and clipboard steps.
func runAssembly(command *cobra.Command, arguments []string, options *commandOptions, treeOnly bool) error {
	loggerInstance, loggerError := utils.NewApplicationLogger()
	if loggerError != nil {
		return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
	}
	defer func() { _ = loggerInstance.Sync() }()

	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}

	applicationConfiguration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: options.configFilePath,
	})
	if configurationError != nil {
		return configurationError
	}
	resolved := resolveSettings(command, options, applicationConfiguration, treeOnly)

	rootPath := defaultPath
	if len(arguments) > 0 {
		rootPath = arguments[0]
	}

	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var progressCallback scan.ProgressFunc
	if options.logProgress {
		progressCallback = func(visitedCount int, currentPath string) {
			if visitedCount%progressLogInterval == 0 {
				loggerInstance.Info(fmt.Sprintf("scanned %d entries, at %s", visitedCount, currentPath))
			}
		}
	}

	fileCache := cache.New()
	scanner := scan.New(scan.Options{
		Root:             rootPath,
		IgnorePatterns:   resolved.ignorePatterns,
		CaseInsensitive:  resolved.caseInsensitive,
		MaxFileSizeBytes: resolved.maxFileSizeBytes,
		Concurrency:      resolved.concurrency,
		IncludeSymlinks:  resolved.includeSymlinks,
		Progress:         progressCallback,
		Logger:           loggerInstance,
	}, fileCache)

	rootNode, scanError := scanner.Scan(signalContext)
	if scanError != nil {
		if errors.Is(scanError, context.Canceled) {
			return errors.New(scanCancelledMessage)
		}
		return scanError
	}

	if len(resolved.selectPatterns) > 0 {
		selection.Toggle(rootNode, types.SelectionUnchecked)
		selection.ApplyPatterns(rootNode, resolved.selectPatterns, types.SelectionChecked, resolved.caseInsensitive)
	}
	if len(resolved.deselectPatterns) > 0 {
		selection.ApplyPatterns(rootNode, resolved.deselectPatterns, types.SelectionUnchecked, resolved.caseInsensitive)
	}

	assembledOutput := assemble.Assemble(rootNode, assemble.Options{
		IncludeLineCounts:  resolved.includeLineCounts,
		TreeOnly:           resolved.treeOnly,
		ShowOmitted:        resolved.showOmitted,
		DirectorySummaries: resolved.directorySummaries,
	})
	fmt.Print(assembledOutput)

	if resolved.logSummary || resolved.countTokens {
		summaryLine, summaryError := buildSummaryLine(rootNode, assembledOutput, resolved)
		if summaryError != nil {
			loggerInstance.Warn(summaryError.Error())
		} else {
			loggerInstance.Info(summaryLine)
		}
	}

	if resolved.copyToClipboard {
		copier := clipboard.NewService()
		if copyError := copier.Copy(assembledOutput); copyError != nil {
			loggerInstance.Warn(fmt.Sprintf("failed to copy output to clipboard: %v", copyError))
		}
	}
	return nil
}

// resolvedSettings is the flag-over-configuration merge consumed by runAssembly.
type resolvedSettings struct {
	ignorePatterns     []string
	caseInsensitive    bool
	maxFileSizeBytes   int64
	concurrency        int
	includeSymlinks    bool
	selectPatterns     []string
	deselectPatterns   []string
	includeLineCounts  bool
	directorySummaries bool
	showOmitted        bool
	treeOnly           bool
	countTokens        bool
	tokenizerModel     string
	copyToClipboard    bool
	logSummary         bool
}

// resolveSettings merges CLI flags over file configuration over built-in
// defaults. A flag wins only when it was set explicitly.
func resolveSettings(command *cobra.Command, options *commandOptions, applicationConfiguration config.ApplicationConfiguration, treeOnly bool) resolvedSettings {
	flagChanged := func(flagName string) bool {
		return command.Flags().Changed(flagName)
	}
	boolSetting := func(flagName string, flagValue bool, configured *bool, fallback bool) bool {
		if flagChanged(flagName) {
			return flagValue
		}
		if configured != nil {
			return *configured
		}
		return fallback
	}

	useDefaults := !options.noDefaultIgnores
	if !flagChanged(noDefaultIgnoresFlagName) && applicationConfiguration.Scan.UseDefaultIgnores != nil {
		useDefaults = *applicationConfiguration.Scan.UseDefaultIgnores
	}
	var ignorePatterns []string
	if useDefaults {
		ignorePatterns = append(ignorePatterns, ignore.DefaultPatterns...)
	}
	ignorePatterns = append(ignorePatterns, applicationConfiguration.Scan.Ignore...)
	ignorePatterns = append(ignorePatterns, options.exclusionPatterns...)
	ignorePatterns = utils.DeduplicatePatterns(ignorePatterns)

	maxFileSizeBytes := options.maxFileSizeBytes
	if !flagChanged(maxFileSizeFlagName) && applicationConfiguration.Scan.MaxFileSizeBytes != nil {
		maxFileSizeBytes = *applicationConfiguration.Scan.MaxFileSizeBytes
	}
	concurrency := options.concurrency
	if !flagChanged(concurrencyFlagName) && applicationConfiguration.Scan.Concurrency != nil {
		concurrency = *applicationConfiguration.Scan.Concurrency
	}

	tokenizerModel := options.tokenizerModel
	if tokenizerModel == "" {
		tokenizerModel = applicationConfiguration.Tokens.Model
	}

	return resolvedSettings{
		ignorePatterns:     ignorePatterns,
		caseInsensitive:    boolPointerValue(applicationConfiguration.Scan.CaseInsensitive),
		maxFileSizeBytes:   maxFileSizeBytes,
		concurrency:        concurrency,
		includeSymlinks:    boolSetting(symlinksFlagName, options.includeSymlinks, applicationConfiguration.Scan.IncludeSymlinks, false),
		selectPatterns:     options.selectPatterns,
		deselectPatterns:   options.deselectPatterns,
		includeLineCounts:  boolSetting(lineCountsFlagName, options.includeLineCounts, applicationConfiguration.Output.LineCounts, true),
		directorySummaries: boolSetting(summariesFlagName, options.directorySummaries, applicationConfiguration.Output.Summaries, false),
		showOmitted:        boolSetting(showOmittedFlagName, options.showOmitted, applicationConfiguration.Output.ShowOmitted, false),
		treeOnly:           treeOnly || boolPointerValue(applicationConfiguration.Output.TreeOnly),
		countTokens:        boolSetting(tokensFlagName, options.countTokens, applicationConfiguration.Tokens.Enabled, false),
		tokenizerModel:     tokenizerModel,
		copyToClipboard:    boolSetting(copyFlagName, options.copyToClipboard, applicationConfiguration.Clipboard, false),
		logSummary:         options.logSummary,
	}
}

func boolPointerValue(value *bool) bool {
	return value != nil && *value
}

// buildSummaryLine formats the post-assembly summary, optionally including a
// token count of the full assembled document.
func buildSummaryLine(rootNode *types.TreeNode, assembledOutput string, resolved resolvedSettings) (string, error) {
	checkedFiles := selection.CheckedFiles(rootNode)
	var totalBytes int64
	for _, fileNode := range checkedFiles {
		totalBytes += fileNode.SizeBytes
	}
	label := "files"
	if len(checkedFiles) == 1 {
		label = "file"
	}
	summaryLine := fmt.Sprintf("Summary: %d %s, %s", len(checkedFiles), label, utils.FormatFileSize(totalBytes))

	if resolved.countTokens {
		counter, resolvedModel, counterError := tokenizer.NewCounter(tokenizer.Config{Model: resolved.tokenizerModel})
		if counterError != nil {
			return "", fmt.Errorf("token counting unavailable: %w", counterError)
		}
		tokenCount, countError := counter.CountString(assembledOutput)
		if countError != nil {
			return "", fmt.Errorf("counting tokens: %w", countError)
		}
		summaryLine += fmt.Sprintf(", %d tokens (model: %s)", tokenCount, resolvedModel)
	}
	return summaryLine, nil
}
