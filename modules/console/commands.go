package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/sportsedu-client/modules/view"
	"github.com/example/sportsedu-client/platform"
)

var (
	errUsage   = errors.New("usage")
	errNoPanel = errors.New("no chat is open")
)

// command is one console verb. rest is the raw text after the verb.
type command struct {
	usage   string
	summary string
	show    bool
	run     func(ctx context.Context, args []string, rest string) error
}

func (m *Module) buildCommands() map[string]command {
	return map[string]command{
		"help": {
			usage:   "help",
			summary: "list commands",
			run: func(context.Context, []string, string) error {
				m.printHelp()
				return nil
			},
		},
		"login": {
			usage:   "login <username> <password>",
			summary: "sign in",
			show:    true,
			run: func(ctx context.Context, args []string, _ string) error {
				if len(args) != 2 {
					return errUsage
				}
				return m.ctrl.Login(ctx, args[0], args[1])
			},
		},
		"signup": {
			usage:   "signup <username> <password> <name> [affiliation] [admin-code]",
			summary: "create an account and sign in",
			show:    true,
			run: func(ctx context.Context, args []string, _ string) error {
				if len(args) < 3 || len(args) > 5 {
					return errUsage
				}
				req := platform.SignupRequest{Username: args[0], Password: args[1], Name: args[2]}
				if len(args) > 3 {
					req.Affiliation = args[3]
				}
				if len(args) > 4 {
					req.AdminCode = args[4]
				}
				return m.ctrl.Signup(ctx, req)
			},
		},
		"logout": {
			usage:   "logout",
			summary: "sign out",
			show:    true,
			run: func(ctx context.Context, _ []string, _ string) error {
				return m.ctrl.Logout(ctx)
			},
		},
		"catalog": m.navigate(view.StateCatalog, "catalog", "show the equipment catalog"),
		"rentals": m.navigate(view.StateMyRentals, "rentals", "show your rentals"),
		"mypage":  m.navigate(view.StateMyPage, "mypage", "show your profile and courses"),
		"admin":   m.navigate(view.StateAdmin, "admin", "show the admin dashboard"),
		"rent": {
			usage:   "rent <equip-id> <start YYYY-MM-DD> <end YYYY-MM-DD> [reason]",
			summary: "request a rental",
			run: func(ctx context.Context, args []string, rest string) error {
				if len(args) < 3 {
					return errUsage
				}
				equipID, err := parseID(args[0])
				if err != nil {
					return err
				}
				start, err := time.Parse(dateLayout, args[1])
				if err != nil {
					return fmt.Errorf("invalid start date %q", args[1])
				}
				end, err := time.Parse(dateLayout, args[2])
				if err != nil {
					return fmt.Errorf("invalid end date %q", args[2])
				}
				created, err := m.ctrl.Rent(ctx, platform.RentalCreate{
					EquipID:   equipID,
					StartDate: start,
					EndDate:   end,
					Reason:    skipFields(rest, 3),
				})
				if err != nil {
					return err
				}
				m.printf("Rental #%d is %s.\n", created.RentalID, created.Status)
				return nil
			},
		},
		"classroom": {
			usage:   "classroom <rental-id>",
			summary: "enter the classroom of an approved rental",
			show:    true,
			run: func(ctx context.Context, args []string, _ string) error {
				if len(args) != 1 {
					return errUsage
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				_, err = m.ctrl.EnterClassroom(ctx, id)
				return err
			},
		},
		"exit-classroom": {
			usage:   "exit-classroom",
			summary: "leave the classroom",
			show:    true,
			run: func(ctx context.Context, _ []string, _ string) error {
				return m.ctrl.ExitClassroom(ctx)
			},
		},
		"chat": {
			usage:   "chat [rental-id]",
			summary: "open the chat of the classroom, or of any rental as admin",
			run: func(ctx context.Context, args []string, _ string) error {
				var id int64
				switch {
				case len(args) == 1:
					parsed, err := parseID(args[0])
					if err != nil {
						return err
					}
					id = parsed
				case len(args) == 0 && m.ctrl.Classroom() != nil:
					id = m.ctrl.Classroom().Rental.RentalID
				default:
					return errUsage
				}
				panel, err := m.ctrl.OpenChat(ctx, id)
				if err != nil {
					return err
				}
				m.printf("Chat for rental #%d. Use 'say <message>' and 'close-chat'.\n", panel.RentalID())
				m.watch(panel)
				return nil
			},
		},
		"say": {
			usage:   "say <message>",
			summary: "send a chat message",
			run: func(_ context.Context, _ []string, rest string) error {
				panel := m.ctrl.Panel()
				if panel == nil {
					return errNoPanel
				}
				return panel.Send(rest)
			},
		},
		"close-chat": {
			usage:   "close-chat",
			summary: "close the chat",
			run: func(context.Context, []string, string) error {
				m.ctrl.CloseChat()
				return nil
			},
		},
		"profile": {
			usage:   "profile <name> [affiliation]",
			summary: "update your profile",
			run: func(ctx context.Context, args []string, rest string) error {
				if len(args) < 1 {
					return errUsage
				}
				updated, err := m.ctrl.UpdateProfile(ctx, platform.ProfileUpdate{
					Name:        args[0],
					Affiliation: skipFields(rest, 1),
				})
				if err != nil {
					return err
				}
				m.printf("Profile saved for %s.\n", updated.DisplayName())
				return nil
			},
		},
		"password": {
			usage:   "password <current> <new> <confirm>",
			summary: "change your password",
			run: func(ctx context.Context, args []string, _ string) error {
				if len(args) != 3 {
					return errUsage
				}
				return m.ctrl.ChangePassword(ctx, platform.PasswordChange{
					CurrentPassword: args[0],
					NewPassword:     args[1],
					Confirm:         args[2],
				})
			},
		},
		"approve": {
			usage:   "approve <rental-id>",
			summary: "approve a pending rental (admin)",
			show:    true,
			run: func(ctx context.Context, args []string, _ string) error {
				if len(args) != 1 {
					return errUsage
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return m.ctrl.ApproveRental(ctx, id)
			},
		},
		"rooms": {
			usage:   "rooms",
			summary: "list rentals with chat activity (admin)",
			run: func(ctx context.Context, _ []string, _ string) error {
				rooms, err := m.ctrl.ChatRooms(ctx)
				if err != nil {
					return err
				}
				m.write(func(b *strings.Builder) { renderRentals(b, rooms, true) })
				return nil
			},
		},
		"add-equipment": {
			usage:   "add-equipment <name> <category> <total-qty> <fee> [instructor-id]",
			summary: "register equipment (admin)",
			run: func(ctx context.Context, args []string, _ string) error {
				if len(args) < 4 || len(args) > 5 {
					return errUsage
				}
				qty, err := strconv.Atoi(args[2])
				if err != nil || qty < 1 {
					return fmt.Errorf("invalid quantity %q", args[2])
				}
				fee, err := strconv.Atoi(args[3])
				if err != nil || fee < 0 {
					return fmt.Errorf("invalid fee %q", args[3])
				}
				req := platform.EquipmentCreate{Name: args[0], Category: args[1], TotalQty: qty, RentalFee: fee}
				if len(args) == 5 {
					if req.InstructorID, err = parseID(args[4]); err != nil {
						return err
					}
				}
				created, err := m.ctrl.CreateEquipment(ctx, req)
				if err != nil {
					return err
				}
				m.printf("Equipment [%d] %s registered.\n", created.EquipID, created.Name)
				return nil
			},
		},
		"add-course": {
			usage:   "add-course <equip-id> <content-type> <content-url> <title>",
			summary: "add a course to equipment (admin)",
			run: func(ctx context.Context, args []string, rest string) error {
				if len(args) < 4 {
					return errUsage
				}
				equipID, err := parseID(args[0])
				if err != nil {
					return err
				}
				created, err := m.ctrl.CreateCourse(ctx, platform.CourseCreate{
					EquipID:     equipID,
					ContentType: args[1],
					ContentURL:  args[2],
					Title:       skipFields(rest, 3),
				})
				if err != nil {
					return err
				}
				m.printf("Course %q added.\n", created.Title)
				return nil
			},
		},
		"quit": {
			usage:   "quit",
			summary: "exit the client",
		},
	}
}

func (m *Module) navigate(target view.State, usage, summary string) command {
	return command{
		usage:   usage,
		summary: summary,
		show:    true,
		run: func(ctx context.Context, _ []string, _ string) error {
			return m.ctrl.Navigate(ctx, target)
		},
	}
}

func (m *Module) printHelp() {
	names := make([]string, 0, len(m.commands))
	for name := range m.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	m.write(func(b *strings.Builder) {
		for _, name := range names {
			cmd := m.commands[name]
			fmt.Fprintf(b, "  %-64s %s\n", cmd.usage, cmd.summary)
		}
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// skipFields returns s without its first n whitespace-separated fields.
func skipFields(s string, n int) string {
	s = strings.TrimSpace(s)
	for i := 0; i < n && s != ""; i++ {
		idx := strings.IndexAny(s, " \t")
		if idx < 0 {
			return ""
		}
		s = strings.TrimSpace(s[idx:])
	}
	return s
}
