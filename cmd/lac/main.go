package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"comassist/internal/app"
	"comassist/internal/config"
	"comassist/internal/db"
	"comassist/internal/domain"
	"comassist/internal/engine"
	"comassist/internal/migrate"
	"comassist/internal/repo"
	"comassist/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "lac",
	Short: "L'Assistant Com' CLI",
	Long: `L'Assistant Com' plans, tracks and scores your communication routine.
- Plan: your weekly time budget, active days, channels and quotas.
- Routine: the recurring task list generated from the plan.
- Calendar: content items moving from idea to published.
- Score: a 0-100 composite of branding, regularity, engagement, channels and AI usage.
- Streaks and badges reward consecutive complete weeks.
- Audit: a 20-question website check with per-category recommendations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("COMASSIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("user", "u", "", "user id (overrides single-user default)")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(routineCmd())
	rootCmd.AddCommand(contentCmd())
	rootCmd.AddCommand(engagementCmd())
	rootCmd.AddCommand(evidenceCmd())
	rootCmd.AddCommand(brandingCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(streaksCmd())
	rootCmd.AddCommand(badgesCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userInitCmd())
	user.AddCommand(userListCmd())
	return user
}

func userInitCmd() *cobra.Command {
	var id, email, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a user with default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, config.Default(id))
			u, err := e.InitUser(cmd.Context(), id, email, name)
			if err != nil {
				return err
			}
			return printJSONOrTable(u)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListUsers(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage user config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print default config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := viper.GetString("user")
			if userID == "" {
				userID = "me"
			}
			fmt.Print(config.GenerateDefault(userID))
			return nil
		},
	})
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import config YAML into the DB (defaults to comassist.yml in the workspace)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var imported *config.Config
			var err error
			if len(args) == 1 {
				imported, err = config.FromFile(args[0])
			} else {
				imported, err = config.Load(viper.GetString("workspace"))
			}
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				userID := e.Config.User.ID
				imported.User.ID = userID
				if err := imported.Validate(); err != nil {
					return err
				}
				if err := e.Repo.UpsertUserConfig(ctx, userID, imported); err != nil {
					return err
				}
				fmt.Println("config imported for", userID)
				return nil
			})
		},
	}
	cfg.AddCommand(importCmd)
	cfg.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write the effective config to comassist.yml in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				data, err := e.Config.YAML()
				if err != nil {
					return err
				}
				target := config.Path(viper.GetString("workspace"))
				if err := os.WriteFile(target, data, 0o644); err != nil {
					return err
				}
				fmt.Println("config written to", target)
				return nil
			})
		},
	})
	return cfg
}

func planCmd() *cobra.Command {
	plan := &cobra.Command{Use: "plan", Short: "Weekly communication plan"}
	plan.AddCommand(planSetCmd())
	plan.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetCommPlan(ctx, e.Config.User.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	})
	return plan
}

func planSetCmd() *cobra.Command {
	var (
		dailyTime     int
		activeDays    []string
		channels      []string
		instaPosts    int
		instaStories  int
		instaReels    int
		linkedinPosts int
		newsletter    string
		monthlyGoal   string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save the weekly plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SaveCommPlan(ctx, domain.CommPlan{
					UserID:               e.Config.User.ID,
					DailyTime:            dailyTime,
					ActiveDays:           activeDays,
					Channels:             channels,
					InstaPostsPerWeek:    instaPosts,
					InstaStoriesPerWeek:  instaStories,
					InstaReelsPerMonth:   instaReels,
					LinkedinPostsPerWeek: linkedinPosts,
					NewsletterFrequency:  newsletter,
					MonthlyGoal:          monthlyGoal,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().IntVar(&dailyTime, "daily-time", 30, "daily time budget in minutes")
	cmd.Flags().StringSliceVar(&activeDays, "days", []string{"lun", "mer", "ven"}, "active days (lun..dim)")
	cmd.Flags().StringSliceVar(&channels, "channels", nil, "enabled channels (instagram,linkedin,pinterest,website)")
	cmd.Flags().IntVar(&instaPosts, "insta-posts", 0, "Instagram posts per week")
	cmd.Flags().IntVar(&instaStories, "insta-stories", 0, "Instagram stories per week")
	cmd.Flags().IntVar(&instaReels, "insta-reels", 0, "Instagram reels per month")
	cmd.Flags().IntVar(&linkedinPosts, "linkedin-posts", 0, "LinkedIn posts per week")
	cmd.Flags().StringVar(&newsletter, "newsletter", "none", "newsletter frequency (none, weekly, monthly)")
	cmd.Flags().StringVar(&monthlyGoal, "goal", "", "declared monthly goal")
	return cmd
}

func routineCmd() *cobra.Command {
	routine := &cobra.Command{Use: "routine", Short: "Generated routine tasks"}
	routine.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the tasks generated from the plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.RoutineTasks(ctx, e.Config.User.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Title", "Type", "Channel", "Recurrence", "Day", "Min"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.SortOrder, t.Title, t.Type, strOrDash(t.Channel), t.Recurrence, strOrDash(t.DayOfWeek), t.Duration})
				}
				tw.Render()
				return nil
			})
		},
	})
	return routine
}

func contentCmd() *cobra.Command {
	content := &cobra.Command{Use: "content", Short: "Content calendar"}
	content.AddCommand(contentAddCmd())
	content.AddCommand(contentListCmd())
	content.AddCommand(contentStatusCmd())
	content.AddCommand(contentPublishCmd())
	return content
}

func contentAddCmd() *cobra.Command {
	var channel, format, title, status, date string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a content item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.CreateContent(ctx, engine.ContentCreateOptions{
					UserID:  e.Config.User.ID,
					Channel: channel,
					Format:  format,
					Title:   title,
					Status:  status,
					Date:    date,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel")
	cmd.Flags().StringVar(&format, "format", "", "format (post, carousel, reel, story...)")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&status, "status", "idea", "initial status")
	cmd.Flags().StringVar(&date, "date", "", "planned date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func contentListCmd() *cobra.Command {
	var channel, status, from, to string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListContentItems(ctx, repo.ContentFilters{
					UserID:   e.Config.User.ID,
					Channel:  channel,
					Status:   status,
					DateFrom: from,
					DateTo:   to,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Date", "Channel", "Title", "Status"})
				for _, item := range items {
					tw.AppendRow(table.Row{item.ID, item.Date, item.Channel, item.Title, item.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&from, "from", "", "date from (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "date to (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "max rows")
	return cmd
}

func contentStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status [content-id]",
		Short: "Move a content item through its lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.SetContentStatus(ctx, args[0], status, viper.GetBool("force"))
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "target status")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func contentPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish [content-id]",
		Short: "Publish a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.PublishContent(ctx, args[0], viper.GetBool("force"))
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
}

func engagementCmd() *cobra.Command {
	var date string
	var missed bool
	var tasksDone int
	engagement := &cobra.Command{Use: "engagement", Short: "Daily engagement routine"}
	logEntry := &cobra.Command{
		Use:   "log",
		Short: "Log today's engagement routine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.LogEngagement(ctx, e.Config.User.ID, date, !missed, tasksDone)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	logEntry.Flags().StringVar(&date, "date", "", "log date (YYYY-MM-DD, default today)")
	logEntry.Flags().BoolVar(&missed, "missed", false, "mark the streak as broken for that day")
	logEntry.Flags().IntVar(&tasksDone, "tasks", 0, "tasks completed")
	engagement.AddCommand(logEntry)
	return engagement
}

// evidenceCmd records channel-activity facts that feed the channels and
// AI-usage sub-scores: AI-assisted generations, Pinterest pins, and site
// page updates. The rows are evidence only; nothing is generated here.
func evidenceCmd() *cobra.Command {
	evidence := &cobra.Command{Use: "evidence", Short: "Record channel activity evidence"}

	var aiChannel, aiKind string
	ai := &cobra.Command{
		Use:   "ai",
		Short: "Record an AI-assisted generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g := domain.AIGeneration{
					ID:        uuid.NewString(),
					UserID:    e.Config.User.ID,
					Channel:   aiChannel,
					Kind:      aiKind,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAIGeneration(ctx, g); err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	ai.Flags().StringVar(&aiChannel, "channel", "", "channel the generation targeted")
	ai.Flags().StringVar(&aiKind, "kind", "", "generation kind (caption, idea, bio...)")
	evidence.AddCommand(ai)

	var board string
	pin := &cobra.Command{
		Use:   "pin",
		Short: "Record a published Pinterest pin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p := domain.Pin{
					ID:        uuid.NewString(),
					UserID:    e.Config.User.ID,
					Board:     board,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertPin(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	pin.Flags().StringVar(&board, "board", "", "board name")
	evidence.AddCommand(pin)

	var page string
	touch := &cobra.Command{
		Use:   "page",
		Short: "Record a website page update",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s := domain.SitePage{
					UserID:    e.Config.User.ID,
					Page:      page,
					UpdatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.TouchSitePage(ctx, s); err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	touch.Flags().StringVar(&page, "page", "accueil", "page identifier")
	evidence.AddCommand(touch)

	return evidence
}

func brandingCmd() *cobra.Command {
	var mission, values, audience, tone, palette, bio string
	var bioValidated bool
	branding := &cobra.Command{Use: "branding", Short: "Branding profile"}
	set := &cobra.Command{
		Use:   "set",
		Short: "Save the branding profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.SaveBrandingProfile(ctx, domain.BrandingProfile{
					UserID:       e.Config.User.ID,
					Mission:      mission,
					Values:       values,
					Audience:     audience,
					Tone:         tone,
					Palette:      palette,
					Bio:          bio,
					BioValidated: bioValidated,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	set.Flags().StringVar(&mission, "mission", "", "mission statement")
	set.Flags().StringVar(&values, "values", "", "brand values")
	set.Flags().StringVar(&audience, "audience", "", "target audience")
	set.Flags().StringVar(&tone, "tone", "", "tone of voice")
	set.Flags().StringVar(&palette, "palette", "", "visual palette")
	set.Flags().StringVar(&bio, "bio", "", "social bio")
	set.Flags().BoolVar(&bioValidated, "bio-validated", false, "mark bio as validated")
	branding.AddCommand(set)
	branding.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the branding profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.Repo.GetBrandingProfile(ctx, e.Config.User.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	})
	return branding
}

func scoreCmd() *cobra.Command {
	var cached bool
	score := &cobra.Command{Use: "score", Short: "Communication score"}
	show := &cobra.Command{
		Use:   "show",
		Short: "Compute the composite score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if cached {
					s, err := e.Repo.LatestScoreSnapshot(ctx, e.Config.User.ID)
					if err != nil {
						return err
					}
					return printJSONOrTable(s)
				}
				s, err := e.ComputeComScore(ctx, e.Config.User.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	show.Flags().BoolVar(&cached, "cached", false, "serve the latest snapshot instead of recomputing")
	score.AddCommand(show)
	score.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Recompute and cache the score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.RefreshScore(ctx, e.Config.User.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	})
	return score
}

func streaksCmd() *cobra.Command {
	var weeks int
	cmd := &cobra.Command{
		Use:   "streaks",
		Short: "Week history and current streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				history, err := e.WeekHistory(ctx, e.Config.User.ID, weeks)
				if err != nil {
					return err
				}
				streak := engine.ConsecutiveStreaks(history)
				if viper.GetBool("json") {
					return printJSON(map[string]any{"weeks": history, "streak": streak})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Week", "Planned", "Published", "Status"})
				for _, w := range history {
					tw.AppendRow(table.Row{w.WeekStart, w.Planned, w.Published, w.Status})
				}
				tw.Render()
				fmt.Printf("Current streak: %d week(s)\n", streak)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&weeks, "weeks", 12, "trailing weeks to evaluate")
	return cmd
}

func badgesCmd() *cobra.Command {
	badges := &cobra.Command{Use: "badges", Short: "Badges"}
	badges.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Badge catalogue with unlock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				unlocked, err := e.Repo.ListUnlockedBadgeIDs(ctx, e.Config.User.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"unlocked": unlocked})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"", "Badge", "Description", "Unlocked"})
				for _, def := range engine.BadgeCatalog {
					state := ""
					if unlocked[def.ID] {
						state = "oui"
					}
					tw.AppendRow(table.Row{def.Emoji, def.Title, def.Description, state})
				}
				tw.Render()
				return nil
			})
		},
	})
	badges.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Evaluate badge predicates and unlock new badges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				newBadges, err := e.CheckBadges(ctx, e.Config.User.ID)
				if err != nil {
					return err
				}
				if len(newBadges) == 0 {
					fmt.Println("no new badges")
					return nil
				}
				for _, b := range newBadges {
					if def, ok := engine.BadgeByID(b.BadgeID); ok {
						fmt.Printf("%s %s : %s\n", def.Emoji, def.Title, def.Description)
					}
				}
				return nil
			})
		},
	})
	return badges
}

func auditCmd() *cobra.Command {
	audit := &cobra.Command{Use: "audit", Short: "Website audit"}
	audit.AddCommand(auditQuestionsCmd())
	audit.AddCommand(auditSubmitCmd())
	audit.AddCommand(auditListCmd())
	return audit
}

func auditQuestionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "Print the questionnaire",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("json") {
				return printJSON(engine.AuditQuestions)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Category", "Question"})
			for _, q := range engine.AuditQuestions {
				tw.AppendRow(table.Row{q.ID, q.Category, q.Label})
			}
			tw.Render()
			return nil
		},
	}
}

func auditSubmitCmd() *cobra.Command {
	var file string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Score a filled questionnaire",
		Long:  `Answers come from a JSON file mapping question id to "oui", "non" or "pas_sure".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var answers map[string]string
			if err := json.Unmarshal(data, &answers); err != nil {
				return fmt.Errorf("parse answers: %w", err)
			}
			if dryRun {
				return printAuditResult(engine.CalculateWebsiteAuditScore(answers))
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				_, result, err := e.RecordAudit(ctx, e.Config.User.ID, answers)
				if err != nil {
					return err
				}
				return printAuditResult(result)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "answers JSON file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "score without recording")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printAuditResult(result engine.AuditScoreResult) error {
	if viper.GetBool("json") {
		return printJSON(result)
	}
	fmt.Printf("Score global : %d/100 (%s)\n", result.Total, engine.WebsiteScoreLabel(result.Total))
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Category", "Score", "Priority", "Recommendation"})
	for _, cat := range engine.AuditCategories {
		cs := result.Categories[cat.ID]
		recs := engine.CategoryRecommendations(cat.ID, cs.Score, cs.Max)
		priority, text := "", ""
		if len(recs) > 0 {
			priority, text = recs[0].Priority, recs[0].Text
		}
		tw.AppendRow(table.Row{cat.Title, fmt.Sprintf("%d/%d", cs.Score, cs.Max), priority, text})
	}
	tw.Render()
	return nil
}

func auditListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Audit history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				audits, err := e.Repo.ListAudits(ctx, e.Config.User.ID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(audits)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Score", "Label"})
				for _, a := range audits {
					tw.AppendRow(table.Row{a.CreatedAt, a.ScoreGlobal, engine.WebsiteScoreLabel(a.ScoreGlobal)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func notificationsCmd() *cobra.Command {
	var unread bool
	var limit int
	notif := &cobra.Command{Use: "notifications", Short: "Notifications"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListNotifications(ctx, repo.NotificationFilters{
					UserID:     e.Config.User.ID,
					UnreadOnly: unread,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "only unread")
	list.Flags().IntVar(&limit, "limit", 50, "max rows")
	notif.AddCommand(list)
	notif.AddCommand(&cobra.Command{
		Use:   "read [notification-id]",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.MarkNotificationRead(ctx, e.Config.User.ID, args[0])
			})
		},
	})
	return notif
}

func apikeyCmd() *cobra.Command {
	apikey := &cobra.Command{Use: "apikey", Short: "API keys for the HTTP server"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the secret is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:      uuid.NewString(),
					UserID:  e.Config.User.ID,
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				fmt.Println("api key id:", key.ID)
				fmt.Println("secret (save it now):", secret)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	apikey.AddCommand(create)
	apikey.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, e.Config.User.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	apikey.AddCommand(&cobra.Command{
		Use:   "delete [key-id]",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	})
	return apikey
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{Use: "log", Short: "Event log"}
	var limit int
	var evtType, entityKind string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.LatestEvents(ctx, limit, e.Config.User.ID, evtType, entityKind, "")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Payload"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 50, "max rows")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter")
	logRoot.AddCommand(tail)
	return logRoot
}

func serveCmd() *cobra.Command {
	var addr, basePath, refreshCron string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveUserAndConfig(cmd.Context(), viper.GetString("user"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:      os.Getenv("COMASSIST_JWT_SECRET"),
				EnableDevLogin: devLogin,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("COMASSIST_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}

			var scheduler *cron.Cron
			if refreshCron != "" {
				scheduler = cron.New()
				if _, err := scheduler.AddFunc(refreshCron, func() {
					refreshAllUsers(e)
				}); err != nil {
					return fmt.Errorf("invalid refresh cron %q: %w", refreshCron, err)
				}
				scheduler.Start()
				defer scheduler.Stop()
			}

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving L'Assistant Com' API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().StringVar(&refreshCron, "refresh-cron", "0 6 * * *", "cron spec for score/badge refresh (empty disables)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable POST /auth/dev/login")
	return cmd
}

// refreshAllUsers recomputes score snapshots and badge unlocks for every
// user. Failures are logged per user and never stop the sweep.
func refreshAllUsers(e engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	users, err := e.Repo.ListUsers(ctx)
	if err != nil {
		fmt.Println("refresh sweep: list users:", err)
		return
	}
	for _, u := range users {
		if _, err := e.RefreshScore(ctx, u.ID); err != nil {
			fmt.Printf("refresh sweep: score %s: %v\n", u.ID, err)
		}
		if _, err := e.CheckBadges(ctx, u.ID); err != nil {
			fmt.Printf("refresh sweep: badges %s: %v\n", u.ID, err)
		}
	}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveUserAndConfig(ctx, viper.GetString("user"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
