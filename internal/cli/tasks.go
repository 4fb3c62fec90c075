package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mfloris/doctran/internal/api"
)

var (
	createSourceLang string
	createTargetLang string
	createEngine     string
	createPriority   string
	createNotes      string
	createProvider   string
	createName       string
	createWatch      bool

	tasksStatus string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage translation tasks",
	Long: `List, inspect, and act on translation tasks.

Subcommands:
  list    List your tasks (default)
  get     Show one task
  create  Upload a document and start a translation
  retry   Re-queue a failed task
  cancel  Cancel a queued or processing task
  watch   Follow a task's progress live

Examples:
  doctran tasks
  doctran tasks create paper.pdf --from en --to zh --engine google
  doctran tasks watch <id>
  doctran tasks retry <id>`,
	RunE: runTasksList,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your tasks",
	RunE:  runTasksList,
}

var tasksGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksGet,
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <file.pdf>",
	Short: "Upload a document and start a translation",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksCreate,
}

var tasksRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Re-queue a failed task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksRetry,
}

var tasksCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a queued or processing task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksCancel,
}

var tasksWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Follow a task's progress live",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksWatch,
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksStatus, "status", "s", "", "filter by status")
	tasksListCmd.Flags().StringVarP(&tasksStatus, "status", "s", "", "filter by status")

	tasksCreateCmd.Flags().StringVar(&createSourceLang, "from", "en", "source language")
	tasksCreateCmd.Flags().StringVar(&createTargetLang, "to", "", "target language")
	tasksCreateCmd.Flags().StringVar(&createEngine, "engine", "", "translation engine")
	tasksCreateCmd.Flags().StringVar(&createPriority, "priority", string(api.PriorityNormal), "priority (normal, high)")
	tasksCreateCmd.Flags().StringVar(&createNotes, "notes", "", "free-form notes")
	tasksCreateCmd.Flags().StringVar(&createProvider, "provider", "", "provider config id")
	tasksCreateCmd.Flags().StringVar(&createName, "name", "", "document display name (defaults to the file name)")
	tasksCreateCmd.Flags().BoolVarP(&createWatch, "watch", "w", false, "follow progress after upload")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksGetCmd)
	tasksCmd.AddCommand(tasksCreateCmd)
	tasksCmd.AddCommand(tasksRetryCmd)
	tasksCmd.AddCommand(tasksCancelCmd)
	tasksCmd.AddCommand(tasksWatchCmd)
}

func runTasksList(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	tasks, err := apiClient.ListTasks(context.Background())
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if tasksStatus != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Status == api.Status(tasksStatus) {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	fmt.Printf("Tasks (%d):\n\n", len(tasks))
	for _, t := range tasks {
		fmt.Printf("- %s  %s  %s→%s  [%s]", t.ID, t.DocumentName, t.SourceLang, t.TargetLang, t.Status)
		if t.Status == api.StatusProcessing {
			fmt.Printf(" %d%%", t.Progress)
		}
		fmt.Println()
		if verbose {
			fmt.Printf("  Engine: %s  Priority: %s  Pages: %d\n", t.Engine, t.Priority, t.PageCount)
			if t.Error != "" {
				fmt.Printf("  Error: %s\n", t.Error)
			}
		}
	}
	return nil
}

func runTasksGet(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	task, err := apiClient.GetTask(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	printTask(task)
	return nil
}

func printTask(t *api.Task) {
	fmt.Printf("%s\n", t.DocumentName)
	fmt.Printf("  ID:       %s\n", t.ID)
	fmt.Printf("  Status:   %s", t.Status)
	if t.Status == api.StatusProcessing {
		fmt.Printf(" (%d%%)", t.Progress)
		if t.ProgressMessage != "" {
			fmt.Printf(" — %s", t.ProgressMessage)
		}
	}
	fmt.Println()
	fmt.Printf("  Language: %s → %s\n", t.SourceLang, t.TargetLang)
	fmt.Printf("  Engine:   %s  Priority: %s\n", t.Engine, t.Priority)
	if t.PageCount > 0 {
		fmt.Printf("  Pages:    %d\n", t.PageCount)
	}
	if t.Error != "" {
		fmt.Printf("  Error:    %s\n", t.Error)
	}
	if t.MonoOutputURL != "" {
		fmt.Printf("  Mono:     %s\n", t.MonoOutputURL)
	}
	if t.DualOutputURL != "" {
		fmt.Printf("  Dual:     %s\n", t.DualOutputURL)
	}
	if t.ZipOutputURL != "" {
		fmt.Printf("  Archive:  %s\n", t.ZipOutputURL)
	}
}

func runTasksCreate(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	path := args[0]
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer file.Close()

	name := createName
	if name == "" {
		name = filepath.Base(path)
	}

	task, err := syncClient.Coordinator.CreateTask(context.Background(), api.CreateTaskInput{
		File:             file,
		FileName:         filepath.Base(path),
		DocumentName:     name,
		SourceLang:       createSourceLang,
		TargetLang:       createTargetLang,
		Engine:           createEngine,
		Priority:         api.Priority(createPriority),
		Notes:            createNotes,
		ProviderConfigID: createProvider,
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	fmt.Printf("Created task %s (%s)\n", task.ID, task.Status)
	if createWatch {
		return runTaskProgress(task.ID)
	}
	fmt.Printf("Use 'doctran tasks watch %s' to follow progress.\n", task.ID)
	return nil
}

func runTasksRetry(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	task, err := syncClient.Coordinator.RetryTask(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("retry task: %w", err)
	}

	fmt.Printf("Task %s re-queued (%s)\n", task.ID, task.Status)
	return nil
}

func runTasksCancel(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	task, err := syncClient.Coordinator.CancelTask(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}

	fmt.Printf("Task %s canceled (%s)\n", task.ID, task.Status)
	return nil
}

func runTasksWatch(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	return runTaskProgress(args[0])
}
