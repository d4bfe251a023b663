package bot

import (
	"ticketbot/internal/ticket"

	"github.com/bwmarrin/discordgo"
)

func locales(fr, en, es string) map[discordgo.Locale]string {
	return map[discordgo.Locale]string{
		discordgo.French:    fr,
		discordgo.EnglishUS: en,
		discordgo.SpanishES: es,
	}
}

func commandLocales(fr, en, es string) *map[discordgo.Locale]string {
	m := locales(fr, en, es)
	return &m
}

func typeChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(ticket.Types))
	for _, t := range ticket.Types {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(t), Value: string(t)})
	}
	return choices
}

func priorityChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(ticket.Priorities))
	for _, p := range ticket.Priorities {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(p), Value: string(p)})
	}
	return choices
}

func hostOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:                     discordgo.ApplicationCommandOptionString,
		Name:                     "host",
		Description:              "Host name, e.g. imgur.com",
		DescriptionLocalizations: locales("Nom d'hote, ex. imgur.com", "Host name, e.g. imgur.com", "Nombre de host, ej. imgur.com"),
		Required:                 true,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	manageServer := int64(discordgo.PermissionManageServer)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "ticket",
			Description:              "Manage support tickets",
			DescriptionLocalizations: commandLocales("Gerer les tickets de support", "Manage support tickets", "Gestionar tickets de soporte"),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "open",
					Description:              "Open a new ticket",
					DescriptionLocalizations: locales("Ouvrir un nouveau ticket", "Open a new ticket", "Abrir un nuevo ticket"),
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:                     discordgo.ApplicationCommandOptionString,
							Name:                     "type",
							Description:              "Ticket category",
							DescriptionLocalizations: locales("Categorie du ticket", "Ticket category", "Categoria del ticket"),
							Required:                 true,
							Choices:                  typeChoices(),
						},
						{
							Type:                     discordgo.ApplicationCommandOptionString,
							Name:                     "detail",
							Description:              "Describe your request",
							DescriptionLocalizations: locales("Decrivez votre demande", "Describe your request", "Describe tu solicitud"),
							Required:                 true,
							MaxLength:                ticket.MaxDetailLength,
						},
						{
							Type:                     discordgo.ApplicationCommandOptionString,
							Name:                     "priority",
							Description:              "Ticket priority",
							DescriptionLocalizations: locales("Priorite du ticket", "Ticket priority", "Prioridad del ticket"),
							Choices:                  priorityChoices(),
						},
					},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "claim",
					Description:              "Claim this ticket",
					DescriptionLocalizations: locales("Prendre en charge ce ticket", "Claim this ticket", "Tomar este ticket"),
				},
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "close",
					Description:              "Close this ticket",
					DescriptionLocalizations: locales("Fermer ce ticket", "Close this ticket", "Cerrar este ticket"),
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:                     discordgo.ApplicationCommandOptionString,
							Name:                     "reason",
							Description:              "Closing reason",
							DescriptionLocalizations: locales("Raison de fermeture", "Closing reason", "Motivo de cierre"),
						},
					},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "reopen",
					Description:              "Reopen this ticket",
					DescriptionLocalizations: locales("Rouvrir ce ticket", "Reopen this ticket", "Reabrir este ticket"),
				},
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "priority",
					Description:              "Change the ticket priority",
					DescriptionLocalizations: locales("Changer la priorite", "Change the ticket priority", "Cambiar la prioridad"),
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:                     discordgo.ApplicationCommandOptionString,
							Name:                     "level",
							Description:              "New priority",
							DescriptionLocalizations: locales("Nouvelle priorite", "New priority", "Nueva prioridad"),
							Required:                 true,
							Choices:                  priorityChoices(),
						},
					},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "transcript",
					Description:              "Export the ticket transcript",
					DescriptionLocalizations: locales("Exporter la transcription", "Export the ticket transcript", "Exportar la transcripcion"),
				},
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "info",
					Description:              "Show ticket details",
					DescriptionLocalizations: locales("Afficher le ticket", "Show ticket details", "Mostrar el ticket"),
				},
			},
		},
		{
			Name:                     "language",
			Description:              "Set your language",
			DescriptionLocalizations: commandLocales("Choisir votre langue", "Set your language", "Elegir tu idioma"),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:                     discordgo.ApplicationCommandOptionString,
					Name:                     "value",
					Description:              "fr, en or es",
					DescriptionLocalizations: locales("fr, en ou es", "fr, en or es", "fr, en o es"),
					Required:                 true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Francais", Value: "fr"},
						{Name: "English", Value: "en"},
						{Name: "Espanol", Value: "es"},
					},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionString,
					Name:                     "scope",
					Description:              "user or guild",
					DescriptionLocalizations: locales("user ou guild", "user or guild", "user o guild"),
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "user", Value: "user"},
						{Name: "guild", Value: "guild"},
					},
				},
			},
		},
		{
			Name:                     "reputation",
			Description:              "Show staff abandonment record",
			DescriptionLocalizations: commandLocales("Afficher le dossier d'abandon", "Show staff abandonment record", "Mostrar historial de abandono"),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:                     discordgo.ApplicationCommandOptionUser,
					Name:                     "user",
					Description:              "Staff member",
					DescriptionLocalizations: locales("Membre du staff", "Staff member", "Miembro del staff"),
				},
			},
		},
		{
			Name:                     "stats",
			Description:              "Ticket statistics",
			DescriptionLocalizations: commandLocales("Statistiques des tickets", "Ticket statistics", "Estadisticas de tickets"),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:                     discordgo.ApplicationCommandOptionInteger,
					Name:                     "days",
					Description:              "Period in days",
					DescriptionLocalizations: locales("Periode en jours", "Period in days", "Periodo en dias"),
				},
			},
		},
		{
			Name:                     "proofhost",
			Description:              "Manage proof hosts",
			DescriptionLocalizations: commandLocales("Gerer les hotes de preuves", "Manage proof hosts", "Gestionar hosts de pruebas"),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "add",
					Description:              "Add a host",
					DescriptionLocalizations: locales("Ajouter un hote", "Add a host", "Agregar un host"),
					Options:                  []*discordgo.ApplicationCommandOption{hostOption()},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "remove",
					Description:              "Remove a host",
					DescriptionLocalizations: locales("Retirer un hote", "Remove a host", "Eliminar un host"),
					Options:                  []*discordgo.ApplicationCommandOption{hostOption()},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionSubCommand,
					Name:                     "list",
					Description:              "List hosts",
					DescriptionLocalizations: locales("Lister les hotes", "List hosts", "Listar hosts"),
				},
			},
		},
		{
			Name:                     "settings",
			Description:              "Configure ticket channels",
			DescriptionLocalizations: commandLocales("Configurer les salons", "Configure ticket channels", "Configurar los canales"),
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:                     discordgo.ApplicationCommandOptionChannel,
					Name:                     "alerts",
					Description:              "Staff alert channel",
					DescriptionLocalizations: locales("Salon d'alertes staff", "Staff alert channel", "Canal de alertas"),
					ChannelTypes:             []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionChannel,
					Name:                     "transcripts",
					Description:              "Transcript channel",
					DescriptionLocalizations: locales("Salon des transcriptions", "Transcript channel", "Canal de transcripciones"),
					ChannelTypes:             []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionChannel,
					Name:                     "category",
					Description:              "Ticket category",
					DescriptionLocalizations: locales("Categorie des tickets", "Ticket category", "Categoria de tickets"),
					ChannelTypes:             []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
				},
				{
					Type:                     discordgo.ApplicationCommandOptionInteger,
					Name:                     "retention",
					Description:              "Audit log retention in days",
					DescriptionLocalizations: locales("Conservation des journaux (jours)", "Audit log retention in days", "Retencion de registros (dias)"),
				},
			},
		},
	}
}

// registerCommands reconciles the guild command set: existing commands are
// edited in place, missing ones created and stale ones removed.
func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	guildID := b.cfg.GuildID
	commands := commandDefinitions()

	existing, err := b.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, guildID, current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
	}
	return nil
}
