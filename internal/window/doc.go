// Package window answers "what is in front of the user": it queries the OS for
// the foreground window and turns the answer into an immutable Context snapshot.
//
// OS access is modeled as small capability interfaces so the rest of the
// pipeline can run against fakes in tests and against real desktops in
// production:
//
//   - Source: foreground window, title and owning application.
//   - EditControlReader, AccessibilityReader, WindowTextReader: the text
//     capabilities consumed by the selection strategies.
//
// Desktop bundles all of them. X11Desktop implements Desktop by shelling out to
// xdotool and xclip; NullDesktop reports no window and is used on hosts without
// a supported display server.
package window
