////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

// Conversation keys address a conversation's message and meta storage. A
// direct conversation between two users keys to the same location no matter
// which side derives it; a room keys to its own generated identifier. Room
// identifiers are random and never contain the direct-key separator between
// two uids, so the two keyspaces cannot collide.

// directKeySeparator joins the two participant ids of a direct conversation.
// It is not a legal character inside a user identifier.
const directKeySeparator = "_"

// DirectKey derives the conversation key for a two-party conversation.
// It is commutative: DirectKey(a, b) == DirectKey(b, a).
func DirectKey(uidA, uidB string) string {
	if uidB < uidA {
		uidA, uidB = uidB, uidA
	}
	return uidA + directKeySeparator + uidB
}

// RoomKey derives the conversation key for a room conversation.
func RoomKey(r Room) string {
	return r.ID
}

// Store path builders. These path shapes are the de facto contract shared
// with the invite and membership collaborators; they must not change
// independently.

func messagesPath(convKey string) string {
	return "chats/" + convKey + "/messages"
}

func metaPath(convKey string) string {
	return "chats/" + convKey + "/meta"
}

func seenByPath(convKey string) string {
	return "chats/" + convKey + "/meta/seenBy"
}

func conversationPath(convKey string) string {
	return "chats/" + convKey
}

func roomPath(roomID string) string {
	return "chatRooms/" + roomID
}

func roomMembersPath(roomID string) string {
	return "chatRooms/" + roomID + "/members"
}

func personalMessagesPath(uid string) string {
	return "users/" + uid + "/messages"
}

func invitationsPath(uid string) string {
	return "users/" + uid + "/invitations"
}

func invitationPath(uid, roomID string) string {
	return "users/" + uid + "/invitations/" + roomID
}

func fcmTokenPath(uid, token string) string {
	return "users/" + uid + "/fcmTokens/" + token
}
