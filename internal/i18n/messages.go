package i18n

var builtin = map[string]map[string]string{
	"fr": {
		"title.staff_alert": "Alerte staff",
		"title.ticket":      "Ticket #{ticket}",
		"title.sanction":    "Sanction staff",
		"title.stats":       "Statistiques des tickets",
		"title.reputation":  "Réputation de {user}",

		"ticket.opened":           "Bienvenue <@{user}> ! Un membre du staff va prendre en charge ton ticket ({type}, priorité {priority}).",
		"ticket.claimed":          "Ticket pris en charge par <@{staff}>.",
		"ticket.closed":           "Ticket fermé par {by}. Raison : {reason}",
		"ticket.reopened":         "Ticket rouvert par <@{by}>.",
		"ticket.reassigned":       "Le membre du staff assigné est inactif. Ton ticket est remis en file d'attente.",
		"ticket.priority_changed": "Priorité changée en {priority} par <@{by}>.",
		"ticket.proof_received":   "Preuve reçue dans le ticket #{ticket} (<#{channel}>) de <@{author}>.",

		"scanner.unclaimed_warning":        "Le ticket #{ticket} (<#{channel}>) n'est pas pris en charge depuis {hours} h.",
		"scanner.unclaimed_second_warning": "Rappel : le ticket #{ticket} (<#{channel}>) attend toujours depuis {hours} h.",
		"scanner.claimed_warning":          "Le ticket #{ticket} (<#{channel}>) pris par <@{staff}> est inactif depuis {hours} h.",
		"scanner.claimed_warning_dm":       "Tu n'as pas répondu au ticket #{ticket} (<#{channel}>) depuis {hours} h. Sans réponse il sera réassigné.",
		"scanner.reassigned":               "Le ticket #{ticket} (<#{channel}>) a été retiré à <@{staff}> et remis en file. Raison : {reason}",
		"scanner.auto_closed":              "Le ticket #{ticket} a été fermé automatiquement. Raison : {reason}",

		"sanction.warning_dm":         "Avertissement : ticket abandonné ({reason}). Total : {count}.",
		"sanction.timeout_dm":         "Tu as été mis en sourdine {minutes} minutes pour abandon de tickets ({reason}).",
		"sanction.timeout_alert":      "<@{staff}> a été mis en sourdine {minutes} minutes ({count} tickets abandonnés).",
		"sanction.role_removed_dm":    "Ton rôle staff a été retiré après {count} tickets abandonnés.",
		"sanction.role_removed_alert": "Le rôle staff de <@{staff}> a été retiré ({count} tickets abandonnés).",

		"button.claim":  "Prendre en charge",
		"button.close":  "Fermer",
		"button.reopen": "Rouvrir",

		"reply.opened":            "Ton ticket a été créé : <#{channel}>",
		"reply.claimed":           "Tu as pris en charge ce ticket.",
		"reply.closed":            "Ticket fermé.",
		"reply.reopened":          "Ticket rouvert.",
		"reply.priority":          "Priorité mise à jour.",
		"reply.language":          "Langue mise à jour : {language}",
		"reply.not_ticket":        "Ce salon n'est pas un ticket.",
		"reply.staff_only":        "Cette action est réservée au staff.",
		"reply.already_claimed":   "Ce ticket est déjà pris en charge.",
		"reply.closed_ticket":     "Ce ticket est fermé.",
		"reply.not_closed":        "Ce ticket n'est pas fermé.",
		"reply.invalid_type":      "Type de ticket invalide.",
		"reply.invalid_priority":  "Priorité invalide.",
		"reply.detail_too_long":   "Le détail est trop long.",
		"reply.too_many_open":     "Tu as déjà {count} tickets ouverts.",
		"reply.rate_limited":      "Tu ouvres des tickets trop vite, réessaie plus tard.",
		"reply.error":             "Une erreur est survenue.",
		"reply.no_reputation":     "Aucun abandon enregistré pour ce membre.",
		"reply.transcript":        "Transcription du ticket #{ticket}.",
		"reply.proof_hosts":       "Hôtes de preuve : {hosts}",
		"reply.proof_host_added":  "Hôte ajouté : {host}",
		"reply.proof_host_remove": "Hôte retiré : {host}",
		"reply.settings":          "Paramètres mis à jour.",

		"field.abandoned":    "Tickets abandonnés",
		"field.sanctions":    "Sanctions",
		"field.last":         "Dernière sanction",
		"field.role_removed": "Rôle retiré",
		"field.events":       "Événements",
		"field.status":       "Statuts",
		"field.closers":      "Top fermetures",
	},
	"en": {
		"title.staff_alert": "Staff alert",
		"title.ticket":      "Ticket #{ticket}",
		"title.sanction":    "Staff sanction",
		"title.stats":       "Ticket statistics",
		"title.reputation":  "Reputation of {user}",

		"ticket.opened":           "Welcome <@{user}>! A staff member will pick up your ticket shortly ({type}, {priority} priority).",
		"ticket.claimed":          "Ticket claimed by <@{staff}>.",
		"ticket.closed":           "Ticket closed by {by}. Reason: {reason}",
		"ticket.reopened":         "Ticket reopened by <@{by}>.",
		"ticket.reassigned":       "The assigned staff member went inactive. Your ticket is back in the queue.",
		"ticket.priority_changed": "Priority changed to {priority} by <@{by}>.",
		"ticket.proof_received":   "Proof received in ticket #{ticket} (<#{channel}>) from <@{author}>.",

		"scanner.unclaimed_warning":        "Ticket #{ticket} (<#{channel}>) has been unclaimed for {hours}h.",
		"scanner.unclaimed_second_warning": "Reminder: ticket #{ticket} (<#{channel}>) is still waiting after {hours}h.",
		"scanner.claimed_warning":          "Ticket #{ticket} (<#{channel}>) claimed by <@{staff}> has been idle for {hours}h.",
		"scanner.claimed_warning_dm":       "You have not replied to ticket #{ticket} (<#{channel}>) for {hours}h. It will be reassigned without a reply.",
		"scanner.reassigned":               "Ticket #{ticket} (<#{channel}>) was taken from <@{staff}> and requeued. Reason: {reason}",
		"scanner.auto_closed":              "Ticket #{ticket} was closed automatically. Reason: {reason}",

		"sanction.warning_dm":         "Warning: abandoned ticket ({reason}). Total: {count}.",
		"sanction.timeout_dm":         "You have been timed out for {minutes} minutes for abandoning tickets ({reason}).",
		"sanction.timeout_alert":      "<@{staff}> was timed out for {minutes} minutes ({count} abandoned tickets).",
		"sanction.role_removed_dm":    "Your staff role was removed after {count} abandoned tickets.",
		"sanction.role_removed_alert": "<@{staff}> lost the staff role ({count} abandoned tickets).",

		"button.claim":  "Claim",
		"button.close":  "Close",
		"button.reopen": "Reopen",

		"reply.opened":            "Your ticket was created: <#{channel}>",
		"reply.claimed":           "You claimed this ticket.",
		"reply.closed":            "Ticket closed.",
		"reply.reopened":          "Ticket reopened.",
		"reply.priority":          "Priority updated.",
		"reply.language":          "Language updated: {language}",
		"reply.not_ticket":        "This channel is not a ticket.",
		"reply.staff_only":        "This action is reserved for staff.",
		"reply.already_claimed":   "This ticket is already claimed.",
		"reply.closed_ticket":     "This ticket is closed.",
		"reply.not_closed":        "This ticket is not closed.",
		"reply.invalid_type":      "Invalid ticket type.",
		"reply.invalid_priority":  "Invalid priority.",
		"reply.detail_too_long":   "The detail is too long.",
		"reply.too_many_open":     "You already have {count} open tickets.",
		"reply.rate_limited":      "You are opening tickets too quickly, try again later.",
		"reply.error":             "Something went wrong.",
		"reply.no_reputation":     "No abandonment recorded for this member.",
		"reply.transcript":        "Transcript of ticket #{ticket}.",
		"reply.proof_hosts":       "Proof hosts: {hosts}",
		"reply.proof_host_added":  "Host added: {host}",
		"reply.proof_host_remove": "Host removed: {host}",
		"reply.settings":          "Settings updated.",

		"field.abandoned":    "Abandoned tickets",
		"field.sanctions":    "Sanctions",
		"field.last":         "Last sanction",
		"field.role_removed": "Role removed",
		"field.events":       "Events",
		"field.status":       "Status",
		"field.closers":      "Top closers",
	},
	"es": {
		"title.staff_alert": "Alerta de staff",
		"title.ticket":      "Ticket #{ticket}",
		"title.sanction":    "Sanción de staff",
		"title.stats":       "Estadísticas de tickets",
		"title.reputation":  "Reputación de {user}",

		"ticket.opened":           "¡Bienvenido <@{user}>! Un miembro del staff atenderá tu ticket pronto ({type}, prioridad {priority}).",
		"ticket.claimed":          "Ticket asumido por <@{staff}>.",
		"ticket.closed":           "Ticket cerrado por {by}. Motivo: {reason}",
		"ticket.reopened":         "Ticket reabierto por <@{by}>.",
		"ticket.reassigned":       "El miembro del staff asignado está inactivo. Tu ticket vuelve a la cola.",
		"ticket.priority_changed": "Prioridad cambiada a {priority} por <@{by}>.",
		"ticket.proof_received":   "Prueba recibida en el ticket #{ticket} (<#{channel}>) de <@{author}>.",

		"scanner.unclaimed_warning":        "El ticket #{ticket} (<#{channel}>) lleva {hours} h sin asignar.",
		"scanner.unclaimed_second_warning": "Recordatorio: el ticket #{ticket} (<#{channel}>) sigue esperando tras {hours} h.",
		"scanner.claimed_warning":          "El ticket #{ticket} (<#{channel}>) asumido por <@{staff}> lleva {hours} h inactivo.",
		"scanner.claimed_warning_dm":       "No has respondido al ticket #{ticket} (<#{channel}>) en {hours} h. Sin respuesta será reasignado.",
		"scanner.reassigned":               "El ticket #{ticket} (<#{channel}>) fue retirado a <@{staff}> y devuelto a la cola. Motivo: {reason}",
		"scanner.auto_closed":              "El ticket #{ticket} se cerró automáticamente. Motivo: {reason}",

		"sanction.warning_dm":         "Advertencia: ticket abandonado ({reason}). Total: {count}.",
		"sanction.timeout_dm":         "Has sido silenciado {minutes} minutos por abandonar tickets ({reason}).",
		"sanction.timeout_alert":      "<@{staff}> fue silenciado {minutes} minutos ({count} tickets abandonados).",
		"sanction.role_removed_dm":    "Tu rol de staff fue retirado tras {count} tickets abandonados.",
		"sanction.role_removed_alert": "<@{staff}> perdió el rol de staff ({count} tickets abandonados).",

		"button.claim":  "Asumir",
		"button.close":  "Cerrar",
		"button.reopen": "Reabrir",

		"reply.opened":            "Tu ticket fue creado: <#{channel}>",
		"reply.claimed":           "Has asumido este ticket.",
		"reply.closed":            "Ticket cerrado.",
		"reply.reopened":          "Ticket reabierto.",
		"reply.priority":          "Prioridad actualizada.",
		"reply.language":          "Idioma actualizado: {language}",
		"reply.not_ticket":        "Este canal no es un ticket.",
		"reply.staff_only":        "Esta acción está reservada al staff.",
		"reply.already_claimed":   "Este ticket ya está asumido.",
		"reply.closed_ticket":     "Este ticket está cerrado.",
		"reply.not_closed":        "Este ticket no está cerrado.",
		"reply.invalid_type":      "Tipo de ticket no válido.",
		"reply.invalid_priority":  "Prioridad no válida.",
		"reply.detail_too_long":   "El detalle es demasiado largo.",
		"reply.too_many_open":     "Ya tienes {count} tickets abiertos.",
		"reply.rate_limited":      "Estás abriendo tickets demasiado rápido, inténtalo más tarde.",
		"reply.error":             "Se produjo un error.",
		"reply.no_reputation":     "No hay abandonos registrados para este miembro.",
		"reply.transcript":        "Transcripción del ticket #{ticket}.",
		"reply.proof_hosts":       "Hosts de prueba: {hosts}",
		"reply.proof_host_added":  "Host añadido: {host}",
		"reply.proof_host_remove": "Host eliminado: {host}",
		"reply.settings":          "Configuración actualizada.",

		"field.abandoned":    "Tickets abandonados",
		"field.sanctions":    "Sanciones",
		"field.last":         "Última sanción",
		"field.role_removed": "Rol retirado",
		"field.events":       "Eventos",
		"field.status":       "Estados",
		"field.closers":      "Más cierres",
	},
}
