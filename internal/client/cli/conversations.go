package cli

import (
	"context"
	"fmt"
	"strconv"
)

// ListConversations prints the user's chat threads, newest first (server
// order).
func (a *App) ListConversations(ctx context.Context) error {
	conversations, err := a.api.Conversations(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Could not list conversations: %v\n", err)
		return err
	}
	if len(conversations) == 0 {
		fmt.Fprintln(a.out, "No conversations yet.")
		return nil
	}
	for _, c := range conversations {
		fmt.Fprintf(a.out, "%6d  %s\n", c.ID, c.Title)
	}
	return nil
}

// NewConversation creates a chat thread with the given title.
func (a *App) NewConversation(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Conversation title", a.out)
	if err != nil {
		return err
	}
	conv, err := a.api.CreateConversation(ctx, title)
	if err != nil {
		fmt.Fprintf(a.out, "Could not create conversation: %v\n", err)
		return err
	}
	fmt.Fprintf(a.out, "Created conversation %d.\n", conv.ID)
	return nil
}

// RenameConversation changes a thread's title.
func (a *App) RenameConversation(ctx context.Context, idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Fprintln(a.out, "Usage: rename <id>")
		return err
	}
	title, err := getSimpleText(a.reader, "New title", a.out)
	if err != nil {
		return err
	}
	if _, err := a.api.RenameConversation(ctx, id, title); err != nil {
		fmt.Fprintf(a.out, "Could not rename conversation: %v\n", err)
		return err
	}
	fmt.Fprintln(a.out, "Renamed.")
	return nil
}

// DeleteConversation removes a thread.
func (a *App) DeleteConversation(ctx context.Context, idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Fprintln(a.out, "Usage: delete <id>")
		return err
	}
	if err := a.api.DeleteConversation(ctx, id); err != nil {
		fmt.Fprintf(a.out, "Could not delete conversation: %v\n", err)
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

// ListDocuments prints the metadata of uploaded PDFs.
func (a *App) ListDocuments(ctx context.Context) error {
	documents, err := a.api.Documents(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Could not list documents: %v\n", err)
		return err
	}
	if len(documents) == 0 {
		fmt.Fprintln(a.out, "No documents uploaded.")
		return nil
	}
	for _, d := range documents {
		fmt.Fprintf(a.out, "%6d  %-40s %8d bytes\n", d.ID, d.Name, d.Size)
	}
	return nil
}
