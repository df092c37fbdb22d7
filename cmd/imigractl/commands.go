package main

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/imigraflow/internal/gcp"
	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/services"
)

func (c *cli) onboardCmd() *cobra.Command {
	var req models.OnboardingRequest
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create a new immigration process and make it active",
		Long: `Generates the requirements and roadmap for a destination and visa and
appends the new process to the namespace. The chat history is cleared.

Example:
  imigractl onboard --name "Ana Souza" --email ana@example.com \
    --country Canada --visa "Express Entry" --profession "TI / Tech"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), false)
			if err != nil {
				return err
			}
			process, err := sess.Onboarding.Process(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), process)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&req.Country, "country", "", "destination country id")
	cmd.Flags().StringVar(&req.Visa, "visa", "", "visa type offered by the country")
	cmd.Flags().StringVar(&req.Profession, "profession", "", "profession")
	for _, f := range []string{"name", "country", "visa", "profession"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the current mission and document progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			view, err := sess.Tracker.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

func (c *cli) processesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processes",
		Short: "List processes, marking the active one",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			processes, active, err := sess.Processes.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range processes {
				marker := " "
				if p.ID == active {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s\t%s\n", marker, p.ID, p.Label(), p.Status)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "switch [process-id]",
		Short: "Make another process active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			if err := sess.Processes.Switch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active process: %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func (c *cli) stepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Move roadmap steps of the active process",
	}
	run := func(start bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			var roadmap *models.Roadmap
			if start {
				roadmap, err = sess.Tracker.StartStep(cmd.Context(), args[0])
			} else {
				roadmap, err = sess.Tracker.CompleteStep(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), roadmap)
		}
	}
	cmd.AddCommand(
		&cobra.Command{Use: "start [step-id]", Short: "Mark a pending step in progress", Args: cobra.ExactArgs(1), RunE: run(true)},
		&cobra.Command{Use: "complete [step-id]", Short: "Complete a step and unlock the next one", Args: cobra.ExactArgs(1), RunE: run(false)},
	)
	return cmd
}

func (c *cli) documentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Track and review required documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status [name] [PENDING_UPLOAD|REVIEWING|APPROVED]",
		Short: "Set the upload status of a required document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			doc, err := sess.Processes.UpdateDocumentStatus(cmd.Context(), args[0], models.DocumentStatus(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	})

	var docType string
	analyze := &cobra.Command{
		Use:   "analyze [image-file]",
		Short: "Pre-check a photo of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(args[0])))
			analysis, err := sess.DocReview.Analyze(cmd.Context(), docType, base64.StdEncoding.EncodeToString(raw), mimeType)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), analysis)
			return nil
		},
	}
	analyze.Flags().StringVar(&docType, "type", "Passaporte", "document type")
	cmd.AddCommand(analyze)
	return cmd
}

func (c *cli) chatCmd() *cobra.Command {
	var reset bool
	var attach []string
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Talk to the assistant about the active process",
		Long: `Without a message the conversation is opened and printed. A new
conversation starts with a greeting about the current mission.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if reset {
				if err := sess.Conversation.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Conversation cleared.")
				return nil
			}

			messages, err := sess.Conversation.Open(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 && len(attach) == 0 {
				for _, m := range messages {
					printMessage(cmd, m)
				}
				return nil
			}

			attachments, err := readAttachments(attach)
			if err != nil {
				return err
			}
			reply, err := sess.Conversation.Send(cmd.Context(), strings.Join(args, " "), attachments)
			if err != nil {
				return err
			}
			printMessage(cmd, *reply)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the conversation")
	cmd.Flags().StringSliceVar(&attach, "attach", nil, "image files to send with the message")
	return cmd
}

func printMessage(cmd *cobra.Command, m models.Message) {
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", m.Role, m.Content)
}

func readAttachments(paths []string) ([]models.Attachment, error) {
	attachments := make([]models.Attachment, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, models.Attachment{
			Name: filepath.Base(p),
			Type: mime.TypeByExtension(strings.ToLower(filepath.Ext(p))),
			Data: base64.StdEncoding.EncodeToString(raw),
		})
	}
	return attachments, nil
}

func (c *cli) studyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Study the active process's reference material",
	}

	var start, end int
	load := &cobra.Command{
		Use:   "load [pdf path or gs:// uri]",
		Short: "Extract a page range and make it the study material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			var client *storage.Client
			if gcp.IsGCSURI(args[0]) {
				if client, err = c.app.StorageClient(cmd.Context()); err != nil {
					return err
				}
			}
			src, filename, err := services.OpenStudySource(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			if end == 0 {
				end = start + c.app.Config.Study.DefaultPages - 1
			}
			text, err := sess.Study.LoadMaterial(cmd.Context(), filename, src, start, end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s (%d characters).\n", filename, len(text))
			return nil
		},
	}
	load.Flags().IntVar(&start, "start", 1, "first page")
	load.Flags().IntVar(&end, "end", 0, "last page (defaults to the configured page count)")

	var language string
	quiz := &cobra.Command{
		Use:   "quiz",
		Short: "Generate a quiz from the material and answer it interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			q, err := sess.Study.GenerateQuiz(cmd.Context(), language)
			if err != nil {
				return err
			}
			answers := askQuiz(cmd, q)
			result, err := sess.Study.RecordQuizResult(cmd.Context(), q, answers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Score: %s\n", result.Score)
			return nil
		},
	}
	quiz.Flags().StringVar(&language, "lang", "Português", "quiz language")

	cmd.AddCommand(load, quiz)
	return cmd
}

// askQuiz prints each question and reads a 1-based option number per line.
// Anything unparsable leaves the question unanswered.
func askQuiz(cmd *cobra.Command, q *models.Quiz) map[int]int {
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	answers := make(map[int]int, len(q.Questions))
	for _, question := range q.Questions {
		fmt.Fprintf(out, "\n%d. %s\n", question.ID, question.Question)
		for i, opt := range question.Options {
			fmt.Fprintf(out, "   %d) %s\n", i+1, opt)
		}
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			break
		}
		if n, err := strconv.Atoi(strings.TrimSpace(in.Text())); err == nil {
			answers[question.ID] = n - 1
		}
		fmt.Fprintln(out, question.Explanation)
	}
	return answers
}

func (c *cli) calcCmd() *cobra.Command {
	var req models.FinancialPlanRequest
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Estimate the cost of the move",
		Long:  "Country and visa default to the active process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), true)
			if err != nil {
				return err
			}
			plan, err := sess.Calculator.Plan(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), plan)
		},
	}
	cmd.Flags().StringVar(&req.Country, "country", "", "destination country")
	cmd.Flags().StringVar(&req.Visa, "visa", "", "visa type")
	cmd.Flags().StringVar(&req.Family, "family", "Solteiro(a)", "family composition")
	cmd.Flags().Float64Var(&req.SafetyRate, "rate", 5.0, "BRL per unit of the destination currency")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print changes written to the namespace by other clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), false)
			if err != nil {
				return err
			}
			changes, err := sess.Processes.Watch(cmd.Context())
			if err != nil {
				return err
			}
			for change := range changes {
				if err := printJSON(cmd.OutOrStdout(), change); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the profile and all processes (the chat log is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := sess.Processes.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
