package domain

import (
	"sort"
	"strings"
)

// ConversationKey - каноническое имя диалога двух участников
type ConversationKey string

const conversationSeparator = ":"

// ResolveConversation не зависит от порядка аргументов
func ResolveConversation(a, b string) ConversationKey {
	ids := []string{a, b}
	sort.Strings(ids)
	return ConversationKey(strings.Join(ids, conversationSeparator))
}

// Participants возвращает участников в отсортированном порядке
func (k ConversationKey) Participants() (string, string) {
	first, second, _ := strings.Cut(string(k), conversationSeparator)
	return first, second
}

func (k ConversationKey) Includes(participantID string) bool {
	first, second := k.Participants()
	return participantID == first || participantID == second
}

func (k ConversationKey) String() string {
	return string(k)
}
