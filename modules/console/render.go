package console

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/example/sportsedu-client/domain/rental"
	chatmod "github.com/example/sportsedu-client/modules/chat"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/example/sportsedu-client/modules/view"
)

const (
	chatWidth  = 72
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

func renderCatalog(w io.Writer, items []rental.Equipment) {
	if len(items) == 0 {
		fmt.Fprintln(w, "  No equipment registered.")
		return
	}
	for _, e := range items {
		stock := fmt.Sprintf("%d/%d available", e.AvailableQty, e.TotalQty)
		if !e.Available() {
			stock = "out of stock"
		}
		line := fmt.Sprintf("  [%d] %s (%s) %s, fee %d", e.EquipID, e.Name, e.Category, stock, e.RentalFee)
		if e.Badge != "" {
			line += " <" + e.Badge + ">"
		}
		fmt.Fprintln(w, line)
	}
}

func renderRentals(w io.Writer, rentals []rental.Rental, withRenter bool) {
	if len(rentals) == 0 {
		fmt.Fprintln(w, "  No rentals.")
		return
	}
	for _, r := range rentals {
		line := fmt.Sprintf("  #%d %s %-9s %s", r.RentalID, equipmentName(r), r.Status, period(r))
		if withRenter && r.User != nil {
			line += " by " + r.User.DisplayName()
		}
		fmt.Fprintln(w, line)
	}
}

func renderProfile(w io.Writer, s *session.Session) {
	if s == nil {
		fmt.Fprintln(w, "  Not signed in.")
		return
	}
	u := s.User()
	fmt.Fprintf(w, "  Name:        %s\n", u.DisplayName())
	fmt.Fprintf(w, "  Username:    %s\n", u.Username)
	fmt.Fprintf(w, "  Affiliation: %s\n", u.Affiliation)
	fmt.Fprintf(w, "  Role:        %s\n", u.Role)
}

func renderCourses(w io.Writer, courses []rental.Course) {
	fmt.Fprintln(w, "  My courses:")
	if len(courses) == 0 {
		fmt.Fprintln(w, "    No courses yet.")
		return
	}
	for _, c := range courses {
		fmt.Fprintf(w, "    - %s [%s]\n", c.Title, c.ContentType)
	}
}

func renderClassroom(w io.Writer, room *view.Classroom) {
	if room == nil {
		return
	}
	fmt.Fprintf(w, "  Classroom: %s (rental #%d)\n", equipmentName(room.Rental), room.Rental.RentalID)
	if len(room.Courses) == 0 {
		fmt.Fprintln(w, "  No courses yet.")
	}
	for i, c := range room.Courses {
		line := fmt.Sprintf("  %d. %s [%s]", i+1, c.Title, c.ContentType)
		if c.Duration != "" {
			line += " " + c.Duration
		}
		fmt.Fprintln(w, line)
		if c.ContentURL != "" {
			fmt.Fprintf(w, "     %s\n", c.ContentURL)
		}
	}
	if room.Rental.InstructorID() == 0 {
		fmt.Fprintln(w, "  No instructor assigned; chat is unavailable.")
	} else {
		fmt.Fprintln(w, "  Type 'chat' to talk to the instructor.")
	}
}

// formatEntry lays out one chat line: own messages right-aligned, others prefixed by avatar and name.
func formatEntry(e chatmod.Entry) string {
	msg := e.Message
	stamp := ""
	if !msg.Timestamp.IsZero() {
		stamp = msg.Timestamp.Local().Format(timeLayout)
	}

	if e.Mine {
		text := msg.Message
		if stamp != "" {
			text = stamp + " " + text
		}
		pad := chatWidth - utf8.RuneCountInString(text)
		if pad < 0 {
			pad = 0
		}
		return strings.Repeat(" ", pad) + text
	}

	name := msg.SenderName()
	if name == "" {
		name = "User"
	}
	line := fmt.Sprintf("(%s) %s: %s", msg.SenderInitial(), name, msg.Message)
	if stamp != "" {
		line += " " + stamp
	}
	return line
}

func equipmentName(r rental.Rental) string {
	if r.Equipment != nil && r.Equipment.Name != "" {
		return r.Equipment.Name
	}
	return fmt.Sprintf("equipment %d", r.EquipID)
}

func period(r rental.Rental) string {
	if r.StartDate.IsZero() {
		return ""
	}
	return r.StartDate.Format(dateLayout) + " ~ " + r.EndDate.Format(dateLayout)
}
