// internal/notify/untracked.go
package notify

import (
	"regexp"
	"strings"
	"unicode"

	"changeview/shared/types"
)

// Toaster shows an error notification with an activatable "view" link.
type Toaster interface {
	NotifyError(title, message string, onView func())
}

// FilePicker shows a read-only list of files in a modal dialog.
type FilePicker interface {
	ShowFiles(title, description string, files []shared.VirtualFile)
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// UntrackedFilesOverwritten notifies that a VCS operation (rebase, merge,
// checkout) would overwrite untracked working tree files. Activating the
// notification's link opens a dialog listing the files. An empty
// description selects the default wording.
func UntrackedFilesOverwritten(toaster Toaster, picker FilePicker,
	files []shared.VirtualFile, operation, description string) {

	title := capitalize(operation) + " error"
	if description == "" {
		description = OverwrittenDescription(operation, false)
	}

	dialogTitle := "Untracked Files Preventing " + capitalize(operation)
	dialogDesc := stripHTML(OverwrittenDescription(operation, true))

	shown := make([]shared.VirtualFile, len(files))
	copy(shown, files)

	toaster.NotifyError(title, description, func() {
		picker.ShowFiles(dialogTitle, dialogDesc, shown)
	})
}

// OverwrittenDescription builds the canonical error wording. The short form
// (filesShown = false) carries the view link; the long form is used when
// the file list itself is on screen.
func OverwrittenDescription(operation string, filesShown bool) string {
	d1 := " untracked working tree files would be overwritten by " + operation + "."
	d2 := "Please move or remove them before you can " + operation + "."
	if filesShown {
		return "These" + d1 + "<br/>" + d2
	}
	return "Some" + d1 + "<br/>" + d2 + " <a href='view'>View them</a>"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func stripHTML(s string) string {
	s = strings.ReplaceAll(s, "<br/>", "\n")
	return tagPattern.ReplaceAllString(s, "")
}
