// Package bot implements the administrator conversation: a reply-keyboard
// wizard for composing tasks, selecting recipients, and managing chat
// groups, plus the fan-out dispatcher and the response handling that
// marks recipients completed.
package bot
