package chatbot

// DefaultTemplate is the guidance message used when no rule matches.
const DefaultTemplate = `I'm not sure I understood that. 🤔 You can ask me about:
- our **pricing** and packages
- the **services** we offer (websites, mobile apps, AI)
- our **portfolio** of past projects

Or email us at **{{.Email}}** and the team will get back to you.`

// DefaultRules returns the consultancy rule table in evaluation order.
//
// Order matters: substantive topics come before small talk, and "ai" is
// checked before "mobile" so an AI-powered app question gets the AI answer.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "pricing",
			Keywords: []string{"price", "pricing", "cost", "how much", "budget", "quote", "quotation", "rates", "fee", "fees", "charge", "package"},
			Template: `**{{.Name}} Pricing** 💰
- Starter website: from **KES 35,000**
- Business website: from **KES 75,000**
- E-commerce store: from **KES 120,000**
- Mobile app: from **KES 150,000**
- AI chatbot integration: from **KES 60,000**

Every project gets a free consultation and a fixed quote before we start. Email **{{.Email}}** to get yours.`,
		},
		{
			Name:     "ai",
			Keywords: []string{"ai", "artificial intelligence", "chatbot", "bot", "machine learning", "ml", "automation", "automate", "gpt", "llm"},
			Template: `**AI Solutions** 🤖
We build practical AI into your business:
- Customer support chatbots (web and WhatsApp)
- Workflow automation and document processing
- Recommendation and analytics dashboards

Tell us what you want to automate and we'll suggest the simplest thing that works.`,
		},
		{
			Name:     "mobile",
			Keywords: []string{"mobile", "app", "apps", "android", "ios", "iphone", "flutter", "play store", "app store"},
			Template: `**Mobile App Development** 📱
- Cross-platform apps for Android and iOS
- M-Pesa and card payment integration
- Offline-first apps for low-connectivity areas
- Publishing to the Play Store and App Store

Apps start from **KES 150,000**.`,
		},
		{
			Name:     "web",
			Keywords: []string{"website", "web", "site", "landing page", "wordpress", "ecommerce", "e-commerce", "online store", "shop", "seo"},
			Template: `**Web Development** 🌐
- Company websites and landing pages
- E-commerce stores with M-Pesa checkout
- Web applications and dashboards
- SEO and performance tuning

Websites start from **KES 35,000** and most go live within 2 to 4 weeks.`,
		},
		{
			Name:     "services",
			Keywords: []string{"service", "offer", "what do you do", "help me", "solutions", "consulting", "consultancy"},
			Template: `**What {{.Name}} Does** 🛠️
- Web development
- Mobile app development
- AI and automation
- UI/UX design
- IT consulting and maintenance

Ask me about any of these for details.`,
		},
		{
			Name:     "portfolio",
			Keywords: []string{"portfolio", "project", "previous work", "past work", "examples", "case study", "case studies", "clients"},
			Template: `**Our Portfolio** 🎨
Visit the Portfolio page to see recent work, including e-commerce stores, school management systems and AI assistants for local businesses.

Want something similar? Email **{{.Email}}**.`,
		},
		{
			Name:     "timeline",
			Keywords: []string{"how long", "timeline", "duration", "deadline", "weeks", "turnaround", "delivery time"},
			Template: `**Typical Timelines** ⏱️
- Starter website: 1 to 2 weeks
- Business website: 2 to 4 weeks
- E-commerce store: 4 to 6 weeks
- Mobile app: 6 to 12 weeks

We agree on milestones up front and share progress every week.`,
		},
		{
			Name:     "support",
			Keywords: []string{"support", "maintenance", "hosting", "domain", "update", "bug"},
			Template: `**Support & Maintenance** 🔧
- Hosting and domain setup
- Monthly maintenance plans
- Security updates and backups
- Bug fixes and small feature changes

Existing clients can reach support at **{{.Email}}**.`,
		},
		{
			Name:     "contact",
			Keywords: []string{"contact", "email", "phone", "call", "whatsapp", "reach", "talk to", "meeting", "consultation", "location", "office"},
			Template: `**Contact {{.Name}}** 📞
- Email: **{{.Email}}**
- Phone / WhatsApp: **{{.Phone}}**
- Hours: Monday to Friday, 8am to 6pm EAT

Book a free consultation and we'll reply within one business day.`,
		},
		{
			Name:     "greeting",
			Keywords: []string{"hello", "hi", "hey", "habari", "jambo", "mambo", "sasa", "good morning", "good afternoon", "good evening"},
			Template: `Hello! 👋 Welcome to **{{.Name}}**. I can tell you about our services, pricing, portfolio or how to reach the team. What would you like to know?`,
		},
		{
			Name:     "thanks",
			Keywords: []string{"thank", "asante", "appreciate"},
			Template: `You're welcome! 😊 Is there anything else I can help you with?`,
		},
		{
			Name:     "goodbye",
			Keywords: []string{"bye", "goodbye", "kwaheri", "see you"},
			Template: `Goodbye! 👋 Thanks for visiting **{{.Name}}**. Reach us any time at **{{.Email}}**.`,
		},
	}
}
