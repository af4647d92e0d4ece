////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import "github.com/pkg/errors"

var (
	// ErrNotSignedIn is returned by operations that require an
	// authenticated session.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrNotRoomOwner is returned when a member attempts an owner-only
	// room operation.
	ErrNotRoomOwner = errors.New("only the room owner may do that")

	// ErrRoomOwnerCannotLeave is returned when the owner tries to leave
	// their own room instead of deleting it.
	ErrRoomOwnerCannotLeave = errors.New("the owner cannot leave the room")

	// ErrRoomGone reports that the open room was deleted out from under
	// the viewer.
	ErrRoomGone = errors.New("room no longer exists")

	// ErrRemovedFromRoom reports that the viewer was removed from the open
	// room.
	ErrRemovedFromRoom = errors.New("no longer a member of this room")

	// ErrNotMessageSender is returned when editing or deleting a message
	// the viewer did not send.
	ErrNotMessageSender = errors.New("message was sent by someone else")

	// ErrNotOriginalTurn is returned when editing a translation turn; only
	// the original side of a pair is editable.
	ErrNotOriginalTurn = errors.New("only the original message can be edited")

	// ErrMessageNotFound is returned when the target of an edit or delete
	// is not in the current snapshot.
	ErrMessageNotFound = errors.New("message not found")

	// ErrCaptureBusy is returned when starting a recording while one is
	// already being recorded or processed.
	ErrCaptureBusy = errors.New("audio capture already in progress")

	// ErrNotRecording is returned when stopping capture while idle.
	ErrNotRecording = errors.New("no recording in progress")
)
