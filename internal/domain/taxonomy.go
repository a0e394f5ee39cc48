package domain

import "strings"

// GSTopics is the closed syllabus taxonomy per General Studies paper.
var GSTopics = map[GSPaper][]string{
	GS1: {
		"Indian Heritage and Culture",
		"Ancient Indian History",
		"Medieval Indian History",
		"Modern Indian History",
		"Freedom Struggle",
		"Post-Independence Consolidation",
		"World History",
		"Indian Society",
		"Social Issues",
		"Women's Issues",
		"Population and Associated Issues",
		"Urbanization",
		"Poverty and Development",
		"Indian Geography",
		"World Geography",
		"Physical Geography",
		"Economic Geography",
		"Geopolitics",
	},
	GS2: {
		"Indian Constitution",
		"Constitutional Framework",
		"Federal Structure",
		"Separation of Powers",
		"Dispute Resolution",
		"Parliament and State Legislatures",
		"Executive and Judiciary",
		"Appointment to Various Posts",
		"Powers, Functions and Responsibilities",
		"Structure, Organization and Functioning of the Judiciary",
		"Government Policies and Interventions",
		"Development Processes",
		"Social Sector Initiatives",
		"Welfare Schemes",
		"Mechanisms, Laws, Institutions and Bodies",
		"Governance Issues",
		"Transparency and Accountability",
		"E-Governance",
		"Civil Services",
		"Role of Civil Society",
		"Bilateral Relations",
		"International Relations",
		"International Organizations",
		"Foreign Policy",
		"India and Its Neighbors",
	},
	GS3: {
		"Economic Development",
		"Indian Economy",
		"Planning",
		"Mobilization of Resources",
		"Growth, Development and Employment",
		"Inclusive Growth",
		"Budgeting",
		"Land Reforms",
		"Infrastructure",
		"Investment Models",
		"Science and Technology",
		"Technology Missions",
		"Intellectual Property Rights",
		"Space Technology",
		"Biotechnology",
		"Agriculture",
		"Food Security",
		"Public Distribution System",
		"Issues Related to Farmers",
		"Environment and Biodiversity",
		"Conservation",
		"Environmental Pollution and Degradation",
		"Climate Change",
		"Disaster Management",
		"Internal Security",
		"Security Challenges",
		"Border Management",
		"Terrorism",
		"Cyber Security",
		"Money Laundering",
		"Defense and Security",
	},
	GS4: {
		"Ethics and Human Interface",
		"Essence, Determinants and Consequences of Ethics",
		"Dimensions of Ethics",
		"Ethics in Public and Private Relationships",
		"Human Values",
		"Role of Family, Society and Educational Institutions",
		"Attitude",
		"Aptitude",
		"Emotional Intelligence",
		"Moral Thinkers and Philosophers",
		"Public Service Values",
		"Probity in Governance",
		"Ethical Concerns and Dilemmas",
		"Ethical Guidance",
		"Accountability and Ethical Governance",
		"Strengthening Ethical and Moral Values",
		"Case Studies",
	},
}

// GSPaperScope is the one-line coverage summary of each paper.
var GSPaperScope = map[GSPaper]string{
	GS1: "History, Culture, Geography, Society, World History",
	GS2: "Polity, Governance, Constitution, International Relations, Social Justice",
	GS3: "Economy, Agriculture, Science & Tech, Environment, Security, Disaster Management",
	GS4: "Ethics, Integrity, Aptitude, Case Studies",
}

var topicIndex = buildTopicIndex()

func buildTopicIndex() map[string]string {
	idx := make(map[string]string)
	for _, topics := range GSTopics {
		for _, t := range topics {
			idx[strings.ToLower(t)] = t
		}
	}
	return idx
}

// CanonicalTopic returns the taxonomy spelling of topic when it matches a
// known syllabus topic case-insensitively.
func CanonicalTopic(topic string) (string, bool) {
	t, ok := topicIndex[strings.ToLower(strings.TrimSpace(topic))]
	return t, ok
}
