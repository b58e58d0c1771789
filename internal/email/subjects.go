package email

const (
	subjectNewLead       = "Nouveau lead disponible"
	subjectLeadReserved  = "Lead réservé"
	subjectLeadPurchased = "Reçu d'achat de lead"
)
