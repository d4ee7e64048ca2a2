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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pulse/internal/app"
	"pulse/internal/config"
	"pulse/internal/db"
	"pulse/internal/domain"
	"pulse/internal/engine"
	"pulse/internal/migrate"
	"pulse/internal/repo"
	"pulse/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse CLI",
	Long: `Pulse tracks project delivery health from a shared event ledger.
- Workspace: your .pulse directory with the database; settings live in pulse.yml.
- Projects: delivery engagements linking one client with assigned employees.
- Events: the append-only ledger of check-ins, feedback, risks, and status changes.
- Health: a 0-100 score recomputed after every ledger write; ON_TRACK / AT_RISK / CRITICAL.
- Check-ins: one per employee per project per rolling week; latest one drives progress.
- Risks: opened manually or automatically from flagged feedback; resolve with 'pulse risk resolve'.`,
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
	viper.SetEnvPrefix("PULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "act as the user with this email (defaults to local admin)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default pulse.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userDeleteCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var name, email, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Register(ctx, engine.RegisterOptions{
					Name:     name,
					Email:    email,
					Password: password,
					Role:     role,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", domain.RoleClient, "role (ADMIN, EMPLOYEE, CLIENT)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := resolveRequester(ctx, e)
				if err != nil {
					return err
				}
				items, err := e.ListUsers(ctx, req)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Created"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role, u.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := resolveRequester(ctx, e)
				if err != nil {
					return err
				}
				return e.DeleteUser(ctx, req, args[0])
			})
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var name, desc, clientID, startDate, endDate string
	var employees []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := resolveRequester(ctx, e)
				if err != nil {
					return err
				}
				p, err := e.CreateProject(ctx, req, engine.CreateProjectOptions{
					Name:        name,
					Description: desc,
					ClientID:    clientID,
					EmployeeIDs: employees,
					StartDate:   startDate,
					EndDate:     endDate,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&clientID, "client", "", "client user id")
	cmd.Flags().StringSliceVar(&employees, "employee", nil, "employee user id (repeatable)")
	cmd.Flags().StringVar(&startDate, "start", "", "start date (RFC3339)")
	cmd.Flags().StringVar(&endDate, "end", "", "end date (RFC3339)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := resolveRequester(ctx, e)
				if err != nil {
					return err
				}
				items, err := e.ListProjects(ctx, req)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Health", "Progress", "Client"})
				for _, p := range items {
					progress := "-"
					if p.Progress != nil {
						progress = fmt.Sprintf("%d%%", *p.Progress)
					}
					tw.AppendRow(table.Row{p.ID, p.Name, p.Status, p.HealthScore, progress, p.ClientID})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, desc, clientID, startDate, endDate, status string
	var progress int
	var employees []string
	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := resolveRequester(ctx, e)
				if err != nil {
					return err
				}
				var opts repo.UpdateProjectOptions
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("client") {
					opts.ClientID = &clientID
				}
				if cmd.Flags().Changed("start") {
					opts.StartDate = &startDate
				}
				if cmd.Flags().Changed("end") {
					opts.EndDate = &endDate
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				if cmd.Flags().Changed("progress") {
					opts.Progress = &progress
				}
				if cmd.Flags().Changed("employee") {
					opts.SetEmployees = true
					opts.EmployeeIDs = employees
				}
				p, err := e.UpdateProject(ctx, req, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&clientID, "client", "", "client user id")
	cmd.Flags().StringSliceVar(&employees, "employee", nil, "employee user id (repeatable, replaces the set)")
	cmd.Flags().StringVar(&startDate, "start", "", "start date (RFC3339)")
	cmd.Flags().StringVar(&endDate, "end", "", "end date (RFC3339)")
	cmd.Flags().StringVar(&status, "status", "", "status (ON_TRACK, AT_RISK, CRITICAL, COMPLETED)")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percent")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := resolveRequester(ctx, e)
				if err != nil {
					return err
				}
				return e.DeleteProject(ctx, req, args[0])
			})
		},
	}
	return cmd
}

func eventCmd() *cobra.Command {
	evt := &cobra.Command{Use: "event", Short: "Submit and inspect ledger events"}
	evt.AddCommand(eventSubmitCmd())
	evt.AddCommand(eventListCmd())
	return evt
}

func eventSubmitCmd() *cobra.Command {
	var project, evtType, title, desc string
	var progressSummary, blockers, attachment string
	var confidence, completion, satisfaction, clarity int
	var flagIssue bool
	var comments, severity, mitigation string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an event to a project ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := resolveRequester(ctx, e)
				if err != nil {
					return err
				}
				opts := engine.SubmitEventOptions{
					ProjectID:   project,
					Requester:   req,
					Type:        evtType,
					Title:       title,
					Description: desc,
				}
				switch evtType {
				case domain.EventCheckin:
					c := &engine.CheckinFields{
						ProgressSummary: progressSummary,
						Blockers:        blockers,
						AttachmentLink:  attachment,
					}
					if cmd.Flags().Changed("confidence") {
						c.ConfidenceLevel = &confidence
					}
					if cmd.Flags().Changed("completion") {
						c.CompletionPercent = &completion
					}
					opts.Checkin = c
				case domain.EventFeedback:
					f := &engine.FeedbackFields{
						FlagIssue: flagIssue,
						Comments:  comments,
					}
					if cmd.Flags().Changed("satisfaction") {
						f.SatisfactionRating = &satisfaction
					}
					if cmd.Flags().Changed("clarity") {
						f.ClarityRating = &clarity
					}
					opts.Feedback = f
				case domain.EventRisk:
					opts.Risk = &engine.RiskFields{
						Severity:   severity,
						Mitigation: mitigation,
					}
				}
				evt, err := e.SubmitEvent(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(evt)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&evtType, "type", "", "event type (CHECKIN, FEEDBACK, RISK, STATUS_CHANGE)")
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.Flags().StringVar(&desc, "description", "", "event description")
	cmd.Flags().StringVar(&progressSummary, "progress-summary", "", "check-in progress summary")
	cmd.Flags().StringVar(&blockers, "blockers", "", "check-in blockers")
	cmd.Flags().IntVar(&confidence, "confidence", 0, "check-in confidence (1-5)")
	cmd.Flags().IntVar(&completion, "completion", 0, "check-in completion percent (0-100)")
	cmd.Flags().StringVar(&attachment, "attachment", "", "check-in attachment link")
	cmd.Flags().IntVar(&satisfaction, "satisfaction", 0, "feedback satisfaction (1-5)")
	cmd.Flags().IntVar(&clarity, "clarity", 0, "feedback clarity (1-5)")
	cmd.Flags().BoolVar(&flagIssue, "flag-issue", false, "feedback flags an issue")
	cmd.Flags().StringVar(&comments, "comments", "", "feedback comments")
	cmd.Flags().StringVar(&severity, "severity", "", "risk severity (LOW, MEDIUM, HIGH)")
	cmd.Flags().StringVar(&mitigation, "mitigation", "", "risk mitigation plan")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func eventListCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's events newest-first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, project)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Title", "User", "Timestamp"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.Type, evt.Title, evt.UserID, evt.Timestamp})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func riskCmd() *cobra.Command {
	risk := &cobra.Command{Use: "risk", Short: "Manage project risks"}
	risk.AddCommand(riskResolveCmd())
	return risk
}

func riskResolveCmd() *cobra.Command {
	var project, mitigation, desc string
	cmd := &cobra.Command{
		Use:   "resolve <event-id>",
		Short: "Resolve a risk event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := resolveRequester(ctx, e)
				if err != nil {
					return err
				}
				var opts engine.ResolveRiskOptions
				if cmd.Flags().Changed("mitigation") {
					opts.Mitigation = &mitigation
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				evt, err := e.ResolveRisk(ctx, project, args[0], req, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(evt)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&mitigation, "mitigation", "", "final mitigation plan")
	cmd.Flags().StringVar(&desc, "description", "", "updated description")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plaintext, err := e.CreateAPIKey(ctx, userID, name)
				if err != nil {
					return err
				}
				fmt.Printf("API key created (shown once): %s\n", plaintext)
				return printJSONOrTable(key)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning user id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "filter by owning user id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Ledger inspection",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var project string
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail the newest ledger events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, project)
				if err != nil {
					return err
				}
				if n > 0 && len(items) > n {
					items = items[:n]
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
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
			log := newLogger()
			e := engine.New(conn, log)
			if _, err := app.EnsureAdmin(cmd.Context(), e.Repo, cfg.Bootstrap); err != nil {
				return err
			}
			secret := os.Getenv("PULSE_JWT_SECRET")
			if secret == "" {
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("PULSE_JWT_SECRET is required for bearer auth")
			}
			authCfg := server.AuthConfig{
				JWTSecret: secret,
				TokenTTL:  time.Duration(cfg.Auth.TokenTTLHours) * time.Hour,
			}
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving Pulse API")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRepo(ctx, func(ctx context.Context, r repo.Repo) error {
		return fn(ctx, engine.New(r.DB, newLogger()))
	})
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

// resolveRequester maps --as to a stored user. Without --as it acts as the
// oldest stored admin so ledger author references stay joinable, falling back
// to a local admin identity only when no admin account exists yet.
func resolveRequester(ctx context.Context, e engine.Engine) (engine.Requester, error) {
	email := strings.TrimSpace(viper.GetString("as"))
	if email == "" {
		if adm, err := e.Repo.FirstUserByRole(ctx, domain.RoleAdmin); err == nil {
			return engine.Requester{ID: adm.ID, Role: adm.Role}, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return engine.Requester{}, err
		}
		return engine.Requester{ID: "local-admin", Role: domain.RoleAdmin}, nil
	}
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return engine.Requester{}, fmt.Errorf("no user with email %s", email)
		}
		return engine.Requester{}, err
	}
	return engine.Requester{ID: u.ID, Role: u.Role}, nil
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
