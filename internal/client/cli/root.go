package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	s := ""
	if a.email != "" {
		s = a.email + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) printHelp() {
	if !a.isLoggedIn() {
		fmt.Println("Available commands: register, login, exit")
		return
	}
	fmt.Println("Available commands:")
	fmt.Println("  add <expense|income|category|budget|rule>")
	fmt.Println("  list <expenses|incomes|categories|budgets|rules|tombstones>")
	fmt.Println("  delete <collection> <id>")
	fmt.Println("  restore <collection> <id>")
	fmt.Println("  purge <collection> <id> [reassign]")
	fmt.Println("  receipt <expense-id> <file>")
	fmt.Println("  generate | sync | status | sweep | logout | exit")
}

// report prints command errors instead of letting them kill the loop.
func report(err error) {
	if err != nil {
		fmt.Println("Error:", err.Error())
	}
}

func (a *App) Root(ctx context.Context) {
	log.Println("Welcome to walletsync CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	report(a.Login(ctx))

	for {
		fmt.Printf("wallet %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		if !a.isLoggedIn() {
			switch cmd {
			case "help":
				a.printHelp()
			case "register":
				report(a.Register(ctx))
			case "login":
				report(a.Login(ctx))
			case "exit", "quit":
				fmt.Println("Bye!")
				return
			default:
				fmt.Println("Log in first (register, login)")
			}
			continue
		}

		switch cmd {
		case "help":
			a.printHelp()

		case "add":
			if len(args) != 1 {
				fmt.Println("Usage: add <expense|income|category|budget|rule>")
				continue
			}
			report(a.addEntity(ctx, args[0]))

		case "l", "list":
			if len(args) != 1 {
				fmt.Println("Usage: list <expenses|incomes|categories|budgets|rules|tombstones>")
				continue
			}
			report(a.listEntities(ctx, args[0]))

		case "delete":
			if len(args) != 2 {
				fmt.Println("Usage: delete <collection> <id>")
				continue
			}
			report(a.deleteEntity(ctx, args[0], args[1]))

		case "restore":
			if len(args) != 2 {
				fmt.Println("Usage: restore <collection> <id>")
				continue
			}
			report(a.restoreEntity(ctx, args[0], args[1]))

		case "purge":
			if len(args) < 2 {
				fmt.Println("Usage: purge <collection> <id> [reassign]")
				continue
			}
			reassign := len(args) > 2 && args[2] == "reassign"
			report(a.purgeEntity(ctx, args[0], args[1], reassign))

		case "receipt":
			if len(args) != 2 {
				fmt.Println("Usage: receipt <expense-id> <file>")
				continue
			}
			report(a.attachReceipt(ctx, args[0], args[1]))

		case "generate":
			report(a.generate(ctx))

		case "sync":
			report(a.sync(ctx))

		case "status":
			report(a.syncStatus(ctx))

		case "sweep":
			report(a.sweep(ctx))

		case "login":
			report(a.Login(ctx))

		case "logout":
			report(a.Logout(ctx))

		case "exit", "quit":
			fmt.Println("Bye!")
			return

		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}

func (a *App) addEntity(ctx context.Context, what string) error {
	switch what {
	case "expense":
		return a.addExpense(ctx)
	case "income":
		return a.addIncome(ctx)
	case "category":
		return a.addCategory(ctx)
	case "budget":
		return a.addBudget(ctx)
	case "rule":
		return a.addRule(ctx)
	}
	return fmt.Errorf("unknown entity %q", what)
}

func (a *App) listEntities(ctx context.Context, what string) error {
	switch what {
	case "expenses":
		return a.listExpenses(ctx)
	case "incomes":
		return a.listIncomes(ctx)
	case "categories":
		return a.listCategories(ctx)
	case "budgets":
		return a.listBudgets(ctx)
	case "rules":
		return a.listRules(ctx)
	case "tombstones":
		return a.listTombstones(ctx)
	}
	return fmt.Errorf("unknown collection %q", what)
}
