package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/walletsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/shared"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts the user for an email and password and attempts to create
// a new account on the server.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	if err := a.remote.Register(ctx, email, string(password)); err != nil {
		log.Printf("Registration failed: %s", err.Error())
		return err
	}

	fmt.Println("Success! Now log in.")
	return nil
}

// Login authenticates against the server. When the server is unreachable it
// falls back to the locally remembered session, so previously synced data
// stays usable offline.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	err = a.remote.Login(ctx, email, string(password))
	if err == nil {
		a.ownerID = a.remote.OwnerID()
		a.email = email
		a.setMode(ModeOnline)
		if err := a.rememberSession(ctx); err != nil {
			a.log.Warn(ctx, "failed to persist session", "error", err)
		}
		log.Printf("Login successful")
		return nil
	}

	if errors.Is(err, common.ErrInvalidCredentials) || errors.Is(err, common.ErrUnauthorized) {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	log.Printf("Server unavailable, trying offline login...")
	if ferr := a.offlineLogin(ctx, email); ferr != nil {
		log.Printf("Offline login unsuccessful: %s", ferr.Error())
		a.setMode(ModeDisabled)
		return err
	}
	log.Printf("Offline login successful")
	a.setMode(ModeOffline)
	return nil
}

// offlineLogin restores the last session for email from local metadata.
func (a *App) offlineLogin(ctx context.Context, email string) error {
	storedEmail, err := a.meta.Get(ctx, metadata.KeyEmail)
	if err != nil {
		return err
	}
	storedOwner, err := a.meta.Get(ctx, metadata.KeyOwnerID)
	if err != nil {
		return err
	}
	if storedOwner == nil || string(storedEmail) != email {
		return common.ErrUnauthorized
	}
	a.ownerID = string(storedOwner)
	a.email = email
	return nil
}

func (a *App) rememberSession(ctx context.Context) error {
	if err := a.meta.Set(ctx, metadata.KeyOwnerID, []byte(a.ownerID)); err != nil {
		return err
	}
	return a.meta.Set(ctx, metadata.KeyEmail, []byte(a.email))
}

// Logout drops the in-memory session and the remembered one.
func (a *App) Logout(ctx context.Context) error {
	if err := a.meta.Clear(ctx); err != nil {
		return err
	}
	a.remote.Logout()
	a.ownerID = ""
	a.email = ""
	a.Mode = ""
	return nil
}
