// Package storage provides the sqlite persistence layer used by the bot.
//
// It keeps:
//   - Registered destination chats and named chat groups
//   - Tasks with their recipient selection units
//   - Recipient responses and completion state
package storage
